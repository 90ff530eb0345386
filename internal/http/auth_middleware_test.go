package httpx

import "testing"

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer tok", want: "tok"},
		{name: "empty", header: "", wantErr: true},
		{name: "whitespace only", header: "   ", wantErr: true},
		{name: "wrong scheme", header: "Basic abc", wantErr: true},
		{name: "scheme without token", header: "Bearer", wantErr: true},
		{name: "too many parts", header: "Bearer a b", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
