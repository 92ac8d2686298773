package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/cipher"
	"github.com/scode/shastity/backend/factory"
)

// splitURI parses a backend URI of the form "type:identifier".
func splitURI(uri string) (scheme, identifier string, err error) {
	idx := strings.Index(uri, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("backend URI %q is not of the form type:identifier", uri)
	}
	return uri[:idx], uri[idx+1:], nil
}

// splitComposite parses the "manifest_uri,label,data_uri" form used by
// persist's destination and materialize's source argument.
func splitComposite(uri string) (manifestURI, label, dataURI string, err error) {
	parts := strings.SplitN(uri, ",", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("composite URI %q is not of the form manifest_uri,label,data_uri", uri)
	}
	return parts[0], parts[1], parts[2], nil
}

// resolveBackend creates (or opens) the backend named by uri, wraps it
// with the duration-logging decorator, and further wraps it with the
// cipher decorator when a crypto key was configured.
func resolveBackend(ctx context.Context, uri string) (backend.Backend, error) {
	scheme, identifier, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	b, err := factory.Create(ctx, scheme, identifier)
	if err != nil {
		return nil, fmt.Errorf("resolving backend %q: %w", uri, err)
	}

	logged := backend.NewBase(scheme, b)

	if cfg.CryptoKey != "" {
		wrapped, err := cipher.New(logged, cfg.CryptoKey)
		if err != nil {
			return nil, fmt.Errorf("wrapping backend %q with cipher: %w", uri, err)
		}
		return wrapped, nil
	}

	return logged, nil
}
