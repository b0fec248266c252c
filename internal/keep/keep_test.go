package keep

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

func TestDecode_AllShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Node
	}{
		{
			name:    "alert",
			payload: `{"type":"alert","kind":"warning"}`,
			want:    Alert{Kind: AlertWarning},
		},
		{
			name:    "codeblock",
			payload: `{"type":"codeblock","lang":"go","title":"main.go","lines":12}`,
			want:    CodeBlock{Lang: "go", Title: "main.go", Lines: 12},
		},
		{
			name:    "heading",
			payload: `{"type":"heading","level":2,"slug":"getting-started"}`,
			want:    Heading{Level: 2, Slug: "getting-started"},
		},
		{
			name:    "image",
			payload: `{"type":"image","alt":"diagram","blurhash":"LEHV6n","width":640,"height":480,"content_type":"image/png","storage":{"type":"r2","bucket":"media","key":"a/b.png"}}`,
			want: Image{
				Alt: "diagram", Blurhash: "LEHV6n", Width: 640, Height: 480, ContentType: "image/png",
				Storage: PointTo(R2{Bucket: "media", Key: "a/b.png"}),
			},
		},
		{
			name:    "link card",
			payload: `{"type":"link_card","href":"https://go.dev/","title":"The Go Programming Language","og_image":"https://go.dev/og.png"}`,
			want:    LinkCard{Href: "https://go.dev/", Title: "The Go Programming Language", OGImage: "https://go.dev/og.png"},
		},
		{
			name:    "footnote reference",
			payload: `{"type":"footnote_reference","id":"note","reference":1,"content":"<p>Side note.</p>"}`,
			want:    FootnoteReference{ID: "note", Reference: 1, Content: "<p>Side note.</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			encoded, err := Encode(got)
			require.NoError(t, err)
			again, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestDecode_RejectsUnknownShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not an object", `true`},
		{"null", `null`},
		{"missing type", `{"kind":"note"}`},
		{"unknown type", `{"type":"video","src":"x.mp4"}`},
		{"unknown field", `{"type":"alert","kind":"note","color":"red"}`},
		{"missing required field", `{"type":"heading","level":2}`},
		{"wrong field type", `{"type":"heading","level":"two","slug":"x"}`},
		{"heading level out of range", `{"type":"heading","level":7,"slug":"x"}`},
		{"unknown alert kind", `{"type":"alert","kind":"danger"}`},
		{"relative link card href", `{"type":"link_card","href":"/docs","title":"Docs"}`},
		{"script link card href", `{"type":"link_card","href":"javascript:alert(1)","title":"x"}`},
		{"footnote reference zero", `{"type":"footnote_reference","id":"a","reference":0,"content":""}`},
		{"r2 pointer missing key", `{"type":"image","alt":"","width":1,"height":1,"content_type":"image/png","storage":{"type":"r2","bucket":"x"}}`},
		{"unknown pointer type", `{"type":"image","alt":"","width":1,"height":1,"content_type":"image/png","storage":{"type":"s3","bucket":"x","key":"y"}}`},
		{"null storage", `{"type":"image","alt":"","width":1,"height":1,"content_type":"image/png","storage":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.IsSchemaValidation(err), "expected schema validation error, got %v", err)
		})
	}
}

func TestStoragePointer_RoundTrip(t *testing.T) {
	pointers := []StoragePointer{
		PointTo(R2{Bucket: "media", Key: "img/1.png"}),
		PointTo(KV{Namespace: "bodies", Key: "guide/intro"}),
		PointTo(Asset{Path: "/images/logo.svg"}),
		PointTo(Inline{Content: "aGVsbG8=", Base64: true}),
	}
	for _, p := range pointers {
		data, err := json.Marshal(p)
		require.NoError(t, err)

		var back StoragePointer
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, p, back)
	}

	inline := Inline{Content: "aGVsbG8=", Base64: true}
	b, err := inline.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestStoragePointer_Invalid(t *testing.T) {
	for _, payload := range []string{
		`{"type":"kv","namespace":"x"}`,
		`{"type":"asset","path":""}`,
		`{"type":"inline","content":"%%%","base64":true}`,
		`{"type":"r2","bucket":"a","key":"b","region":"eu"}`,
	} {
		var p StoragePointer
		err := json.Unmarshal([]byte(payload), &p)
		require.Error(t, err, payload)
		assert.True(t, errors.IsSchemaValidation(err), payload)
	}

	assert.Error(t, StoragePointer{}.Validate())
}

func TestFromAttributes(t *testing.T) {
	n, err := FromAttributes("codeblock", map[string]string{"lang": "js", "data-title": "app.js", "lines": "3", "class": "x"})
	require.NoError(t, err)
	assert.Equal(t, CodeBlock{Lang: "js", Title: "app.js", Lines: 3}, n)

	n, err = FromAttributes("image", map[string]string{
		"alt": "logo", "width": "10", "height": "20", "data-content-type": "image/svg+xml",
		"storage": `{"type":"asset","path":"/logo.svg"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, PointTo(Asset{Path: "/logo.svg"}), n.(Image).Storage)

	_, err = FromAttributes("heading", map[string]string{"level": "h2", "slug": "x"})
	assert.True(t, errors.IsSchemaValidation(err))

	_, err = FromAttributes("marquee", nil)
	assert.True(t, errors.IsSchemaValidation(err))

	assert.Contains(t, AttributeNames("image"), "data-content-type")
	assert.Len(t, Types(), 6)
}

func TestImageFromReference(t *testing.T) {
	ref := ImageReference{
		Hash:        "abc",
		Size:        1024,
		ContentType: "image/jpeg",
		Meta:        ImageReferenceMeta{Width: 800, Height: 600, Blurhash: "L00000", DerivedID: "abc-800"},
		Pointer:     PointTo(KV{Namespace: "images", Key: "abc"}),
	}
	img := ImageFromReference("photo", ref)
	require.NoError(t, img.Validate())
	assert.Equal(t, 800, img.Width)
	assert.Equal(t, "image/jpeg", img.ContentType)

	data, err := json.Marshal(ref)
	require.NoError(t, err)
	var back ImageReference
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ref, back)
}

func TestLinkCardHrefScheme(t *testing.T) {
	tests := []struct {
		href string
		ok   bool
	}{
		{"https://go.dev/", true},
		{"HTTP://example.com/a", true},
		{"javascript:alert(1)", false},
		{"data:text/html,<b>x</b>", false},
		{"ftp://example.com/file", false},
		{"/relative/path", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			err := LinkCard{Href: tt.href}.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsSchemaValidation(err))
		})
	}
}
