// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	ReadBytesKey  = attribute.Key("http.read_bytes")  // total bytes read from the request body
	ReadErrorKey  = attribute.Key("http.read_error")  // error while reading a request, io.EOF is not recorded
	WroteBytesKey = attribute.Key("http.wrote_bytes") // total bytes written to the response writer
	WriteErrorKey = attribute.Key("http.write_error") // error while writing a reply, io.EOF is not recorded
)

// used by middleware to create context key for configured transfer headers
type TransferHeaderKey string
