// Package all assembles the registration table of every built-in
// provider.
package all

import (
	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
	"github.com/anirudhbiyani/cloudjack/pkg/providers/aws"
	"github.com/anirudhbiyani/cloudjack/pkg/providers/gcp"
)

// Registrations returns the built-in provider registrations.
func Registrations() []cloudjack.Registration {
	return []cloudjack.Registration{
		aws.Registration(),
		gcp.Registration(),
	}
}

// Registry returns a registry of every built-in provider.
func Registry() *cloudjack.Registry {
	return cloudjack.MustNewRegistry(Registrations()...)
}
