package main

import "github.com/trailhead-app/trailhead/internal/cli"

func main() {
	cli.Execute()
}
