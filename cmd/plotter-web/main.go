package main

import "github.com/JakeFAU/plotter-web/cmd"

func main() {
	cmd.Execute()
}
