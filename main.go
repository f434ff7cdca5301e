package main

import "github.com/frahmantamala/kit-checkout/cmd"

func main() {
	cmd.Execute()
}
