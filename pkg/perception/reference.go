package perception

import "strings"

// Ref builds a parameterised reference id such as "consulate.option:Warsaw".
// Locators split it back with SplitRef.
func Ref(name, arg string) string {
	if arg == "" {
		return name
	}
	return name + ":" + arg
}

// SplitRef splits a reference id into its catalog name and argument.
func SplitRef(ref string) (name, arg string) {
	name, arg, _ = strings.Cut(ref, ":")
	return name, arg
}
