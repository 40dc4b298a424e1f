// Command usrgen generates target-specific models from schema declarations.
package main

func main() {
	Execute()
}
