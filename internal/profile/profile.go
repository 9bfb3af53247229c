// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package profile

import (
	"os"
	"strings"
)

type ProfileType string

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

const profileEnv = "PROFILE"

var Current = DEV

// InitProfile reads PROFILE. Unknown values keep the DEV profile.
func InitProfile() ProfileType {
	Current = Parse(os.Getenv(profileEnv))
	return Current
}

func Parse(s string) ProfileType {
	switch p := ProfileType(strings.ToUpper(strings.TrimSpace(s))); p {
	case TEST, PROD:
		return p
	default:
		return DEV
	}
}

// StructuredLogs reports whether logs are emitted as JSON for collection.
func (p ProfileType) StructuredLogs() bool {
	return p == PROD
}
