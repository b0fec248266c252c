package keep

// ObjectReference points at an out-of-band blob together with what is known about
// it up front, so consumers can lay it out before fetching the bytes.
type ObjectReference[M any, P any] struct {
	Hash        string `json:"hash"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Meta        M      `json:"meta"`
	Pointer     P      `json:"pointer"`
}

// ImageReferenceMeta is enough to reserve an image's box and paint a placeholder.
type ImageReferenceMeta struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Blurhash  string `json:"blurhash"`
	DerivedID string `json:"derived_id"`
}

// MarkdownReferenceMeta describes a Markdown body stored in a KV-shaped store.
type MarkdownReferenceMeta struct {
	Slug        string `json:"slug"`
	Fingerprint string `json:"fingerprint"`
}

type (
	ImageReference    = ObjectReference[ImageReferenceMeta, StoragePointer]
	MarkdownReference = ObjectReference[MarkdownReferenceMeta, StoragePointer]
)

// ImageFromReference builds an image keep node from a resolved reference.
func ImageFromReference(alt string, ref ImageReference) Image {
	return Image{
		Alt:         alt,
		Blurhash:    ref.Meta.Blurhash,
		Width:       ref.Meta.Width,
		Height:      ref.Meta.Height,
		ContentType: ref.ContentType,
		Storage:     ref.Pointer,
	}
}
