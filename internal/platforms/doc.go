// Package platforms parses the shorthand platforms of charmcraft.yaml.
//
// Only entries written as os@release:arch are accepted. Those guarantee that a
// charm is built on the same architecture it is built for, which is what makes
// reusing pre-built wheels safe. base, bases, and build-on/build-for entries
// are rejected with services.ErrUnsupportedSyntax.
package platforms
