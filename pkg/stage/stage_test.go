package stage

import "testing"

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"/scratch/input.las":              false,
		"./relative/output.laz":           false,
		"s3+http://host:9000/bucket/key":  true,
		"s3+https://host:9000/bucket/key": true,
		"gs://bucket/key":                 true,
		"sftp://host/path/to/file":        true,
	}
	for location, want := range cases {
		if got := IsRemote(location); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", location, got, want)
		}
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open("ftp://host/path"); err == nil {
		t.Fatal("expected an error for an unrecognized scheme")
	}
}
