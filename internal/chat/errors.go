package chat

// User-facing rejection messages. Rejections travel as `error` events and
// never close the connection.
const (
	msgNotAuthenticated  = "User not authenticated"
	msgNotParticipant    = "Not a participant in this conversation"
	msgMuted             = "You are muted in this conversation"
	msgReplyNotFound     = "Reply message not found in this conversation"
	msgAttachmentMalform = "Attachment URL is malformed"
	msgAttachmentScheme  = "Only HTTPS attachment URLs are allowed"
	msgAttachmentHost    = "Attachment URL must be from an approved storage host"
	msgTooFast           = "You are sending messages too quickly"
	msgEmptyContent      = "Message content cannot be empty"
	msgInternal          = "Something went wrong, please try again"
)

// rejectionError marks failures whose message is safe to show the client.
// Anything else is logged and surfaced as msgInternal.
type rejectionError struct {
	msg string
}

func (e rejectionError) Error() string { return e.msg }

func reject(msg string) error { return rejectionError{msg: msg} }
