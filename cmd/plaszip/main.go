// Command plaszip converts point-cloud files between LAS and LAZ across a
// cohort of peers coordinated by the github.com/plaszip/plaszip package.
package main

func main() {
	Execute()
}
