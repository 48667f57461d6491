package gmail

// Message holds the fields of a press-review email the pipeline needs.
type Message struct {
	ID           string
	Subject      string
	From         string
	InternalDate int64 // ms since epoch, used for tie-breaking
	HTMLBody     string
	Attachment   *Attachment
}

// Attachment describes a PDF part found in a message. The bytes are
// fetched separately through the attachments API.
type Attachment struct {
	Filename     string
	MimeType     string
	AttachmentID string
	Size         int64
}

// DocumentRef points at the press-review document: either an attachment on
// the message or a URL extracted from the body.
type DocumentRef struct {
	AttachmentID string
	Filename     string
	URL          string
}
