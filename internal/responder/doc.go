// Package responder implements the callback protocol of the messaging platform:
// the endpoint ownership handshake and encrypted message dispatch.
//
// # Handshake
//
// The platform proves an endpoint before registering it by sending
// timestamp, nonce, msg_signature and an encrypted echostr. Verify checks the
// signature, decrypts the challenge and returns its payload verbatim.
//
// # Message delivery
//
// Respond runs one delivery through a fixed sequence of states:
//
//  1. Authenticate: SHA-1 signature over token, timestamp, nonce and Encrypt.
//     Mismatch is rejected before any decryption.
//  2. Decrypt and unwrap: AES-256-CBC then envelope unpack.
//  3. Validate receiver: the id bound in the envelope must equal the
//     configured one; mismatch is an authentication failure.
//  4. Parse the XML message.
//  5. Route through the Table (see below).
//  6. Invoke the handler.
//  7. Build the reply with sender and receiver swapped.
//  8. Seal: pack, encrypt, base64, sign over a fresh timestamp and nonce.
//
// Terminal outcomes are Rejected (403, empty body), Accepted (200, empty
// body) and Replied (200, encrypted XML). A message no handler wants is
// Accepted, so the platform does not retry it.
//
// # Routing
//
// Text: exact and regexp routes in registration order, then the generic
// text route. Events: a route whose name equals Event (case-insensitive),
// then a route whose name equals EventKey, then the generic event route.
// Other kinds: the route registered for the kind. Finally the fallback.
//
// # Example
//
//	table := responder.NewTableBuilder().
//		OnText(func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
//			return req.Reply().Text("echo: " + req.Match.Content), nil
//		}).
//		OnEvent("subscribe", func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
//			return req.Reply().Text("welcome!"), nil
//		}).
//		Build()
//
//	creds, err := responder.NewCredentials(token, corpID, encodingAESKey)
//	if err != nil {
//		return err
//	}
//	r := responder.New(creds, table, logger)
package responder
