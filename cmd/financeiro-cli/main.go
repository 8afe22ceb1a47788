// Command financeiro-cli runs operator tasks against the SQLite database:
// migrations, token issuing and budget entries without the HTTP API.
package main

func main() {
	Execute()
}
