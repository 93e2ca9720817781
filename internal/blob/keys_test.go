package blob

import "testing"

func TestBasename_StripsPrefixAndExtension(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"source/vpc-guide.pdf", "vpc-guide"},
		{"source/guides/networking/vpc-guide.pdf", "vpc-guide"},
		{"vpc-guide.pdf", "vpc-guide"},
		{"source/README", "README"},
		{"source/archive.tar.gz", "archive.tar"},
	}
	for _, c := range cases {
		if got := Basename(c.key); got != c.want {
			t.Errorf("Basename(%q): expected %q, got %q", c.key, c.want, got)
		}
	}
}

func TestProcessedKey(t *testing.T) {
	if got := ProcessedKey("source/vpc-guide.pdf"); got != "processed/vpc-guide.md" {
		t.Fatalf("expected processed/vpc-guide.md, got %q", got)
	}
}

func TestImageKey_DefaultsToPNG(t *testing.T) {
	if got := ImageKey("abc", ""); got != "images/abc.png" {
		t.Errorf("expected images/abc.png, got %q", got)
	}
	if got := ImageKey("abc", "jpg"); got != "images/abc.jpg" {
		t.Errorf("expected images/abc.jpg, got %q", got)
	}
}

func TestS3URI(t *testing.T) {
	if got := S3URI("docsift", "images/abc.png"); got != "s3://docsift/images/abc.png" {
		t.Fatalf("expected s3://docsift/images/abc.png, got %q", got)
	}
}

func TestSourceName(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"source/vpc-guide.pdf", "vpc-guide.pdf"},
		{"source/archive/vpc-guide.pdf", "archive/vpc-guide.pdf"},
		{"vpc-guide.pdf", "vpc-guide.pdf"},
	}
	for _, c := range cases {
		if got := SourceName(c.key); got != c.want {
			t.Errorf("SourceName(%q): expected %q, got %q", c.key, c.want, got)
		}
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://docsift/images/abc.png")
	if err != nil {
		t.Fatalf("ParseS3URI: %v", err)
	}
	if bucket != "docsift" || key != "images/abc.png" {
		t.Fatalf("expected docsift/images/abc.png, got %s/%s", bucket, key)
	}

	for _, bad := range []string{"http://x/y", "s3://", "s3://bucketonly", "s3://bucket/"} {
		if _, _, err := ParseS3URI(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
