// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bluebubbles builds and dispatches requests against the BlueBubbles
// iMessage bridge HTTP API.
//
// The package does not own a transport or a credential store. Both are
// provided by the caller through the narrow [Host] capability interface, so
// any automation host (or the reference host in pkg/node) can plug in.
//
// # Dispatching
//
// [Dispatcher.Request] turns a [Request] into a freshly built
// [RequestOptions] record: the stored password is injected into the query,
// JSON headers are defaulted without overriding caller headers, the endpoint
// is joined to the server URL with exactly one slash, and empty bodies are
// dropped. Transport failures are mapped onto [APIError] values whose kind can
// be matched with errors.Is against [ErrValidation], [ErrAuthentication],
// [ErrPermissions] and [ErrTransport].
//
// # Utilities
//
// [ParseDate], [Normalize], [ParseErrors], [NameValuePairsToObject] and
// [NormalizeAPIEndpoint] are pure helpers shared with the node layer.
package bluebubbles
