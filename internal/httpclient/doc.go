// Package httpclient builds and sends the HTTP form of a resolved request.
//
// [Build] converts a request.Resolved into an *http.Request, streaming the
// body from memory or from a file and applying credentials through an
// [AuthProvider]. [ReadResponse] captures the status, headers, trailers and
// body that exports and reports need.
//
//	req, err := httpclient.Build(ctx, resolved, provider)
//	if err != nil {
//		return nil, err
//	}
//	resp, err := client.Do(req)
//
// [NewClient] returns a client with connection reuse suited to running many
// iterations against the same host.
package httpclient
