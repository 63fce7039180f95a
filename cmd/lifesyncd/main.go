// Command lifesyncd manages the LifeSync offline cache and its
// reconciliation with the remote backend.
package main

func main() {
	Execute()
}
