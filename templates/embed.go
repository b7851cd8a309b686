// Package templates embeds the default deployment templates shipped
// with the binary.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed docker traefik dex
var FS embed.FS

// Docker returns the component compose templates.
func Docker() fs.FS {
	sub, err := fs.Sub(FS, "docker")
	if err != nil {
		panic(err)
	}
	return sub
}

// Traefik returns the reverse-proxy templates.
func Traefik() fs.FS {
	sub, err := fs.Sub(FS, "traefik")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dex returns the identity-provider templates.
func Dex() fs.FS {
	sub, err := fs.Sub(FS, "dex")
	if err != nil {
		panic(err)
	}
	return sub
}
