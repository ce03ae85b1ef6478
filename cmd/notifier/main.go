package main

import "github.com/arnotify/notifier/internal/cli"

func main() {
	cli.Execute()
}
