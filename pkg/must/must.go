// Package must panics on errors that indicate programmer mistakes,
// such as misspelled flag names in cobra setup code.
package must

func Must(err error) {
	if err != nil {
		panic(err)
	}
}
