package main

import "github.com/vibast-solutions/ms-go-skywatch/cmd"

func main() {
	cmd.Execute()
}
