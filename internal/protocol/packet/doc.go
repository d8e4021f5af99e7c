// Package packet implements the bonfire chat wire protocol.
//
// The protocol runs over any ordered byte stream. There is no outer framing:
// every packet starts with a one byte tag and each packet kind defines its own
// fixed plus variable layout, so a reader always knows how many bytes follow a
// recognized tag.
//
// Wire conventions:
//   - Multi-byte integers are little-endian (ByteOrder)
//   - Strings are UTF-8, prefixed by a u8 length (names) or a u16 length (bodies)
//   - Timestamps are signed 64-bit Unix milliseconds
//
// Client packets (client to server):
//
//	Ping        [1]
//	SendMessage [2][target:u8][len:u16][body]
//	ChangeName  [4][len:u8][name]
//	Disconnect  [10]
//
// Server packets (server to client):
//
//	Ping           [1]
//	ReceiveMessage [3][target:u8][author:u8][timestamp:i64][len:u16][body]
//	LogMessage     [5][timestamp:i64][len:u16][body]
//	SendUserInfo   [7][id:u8][len:u8][name]
//	SendUserID     [9][id:u8]
//	UserLeft       [11][id:u8]
//
// Identity 0 is never assigned to a client. As a message target it means
// "everyone" (a public message).
package packet
