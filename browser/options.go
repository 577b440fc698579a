// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"github.com/hashicorp/go-hclog"
	pkgbrowser "github.com/pkg/browser"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

type systemOptions struct {
	withLogger      hclog.Logger
	withOpenURL     func(string) error
	withSuccessHTML string
}

func systemDefaults() systemOptions {
	return systemOptions{
		withLogger:      hclog.NewNullLogger(),
		withOpenURL:     pkgbrowser.OpenURL,
		withSuccessHTML: successHTML,
	}
}

func getSystemOpts(opt ...Option) systemOptions {
	opts := systemDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*systemOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithOpenURL overrides the function used to open the system browser.
func WithOpenURL(fn func(string) error) Option {
	return func(o interface{}) {
		if o, ok := o.(*systemOptions); ok && fn != nil {
			o.withOpenURL = fn
		}
	}
}

// WithSuccessHTML overrides the page shown once the callback is captured.
func WithSuccessHTML(html string) Option {
	return func(o interface{}) {
		if o, ok := o.(*systemOptions); ok {
			o.withSuccessHTML = html
		}
	}
}
