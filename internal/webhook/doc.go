// Package webhook exposes callback endpoints over HTTP.
//
// Each configured path answers two requests from the messaging platform:
// GET is the ownership handshake, POST is a message delivery. Both are
// authenticated and decrypted by a Callback (normally a *responder.Responder);
// this package only moves bytes between HTTP and the responder.
//
// # Security Model
//
// - Signatures verified with a constant-time comparison in the responder
// - Body size limits enforced before any decryption work
// - Rejections are always a bare 403 with an empty body
// - Request logging excludes bodies and query strings
//
// # Configuration
//
//	listen: "127.0.0.1:8081"
//	endpoints:
//	  - path: /wecom/callback
//	    token: ${WECOM_TOKEN}
//	    encoding_aes_key: ${WECOM_AES_KEY}
//	    max_body_size: 1MB
//
// # Request Flow
//
//  1. GET path?msg_signature&timestamp&nonce&echostr
//  2. Signature checked over echostr, challenge decrypted
//  3. 200 with the plaintext challenge, or 403
//
//  1. POST path?msg_signature&timestamp&nonce with <xml><Encrypt/></xml>
//  2. Body size checked (413 if too large)
//  3. Signature checked, payload decrypted, message routed to a handler
//  4. 200 with an encrypted reply, 200 empty when there is nothing to say, or 403
//
// # Example Usage
//
//	cfg, err := webhook.FromGlobalConfig(globalCfg, table, logger)
//	if err != nil {
//		return err
//	}
//	server := webhook.New(cfg, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
