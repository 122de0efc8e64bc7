package main

import "github.com/example/sabores-reservas/cmd"

func main() {
	cmd.Execute()
}
