// Package email builds and dispatches transactional mail. The core treats
// dispatch as fire-and-forget: a send failure is logged by the caller, never
// fatal to the operation that triggered it.
package email

// Address is a display name plus mailbox address.
type Address struct {
	Name    string
	Address string
}

// Message is a single outbound HTML email.
type Message struct {
	To       Address
	From     Address
	Subject  string
	HTMLBody string
}
