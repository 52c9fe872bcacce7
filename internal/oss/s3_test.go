package oss

import "testing"

func TestBuildObjectURL(t *testing.T) {
	cases := []struct {
		endpoint, region, want string
	}{
		{"oss-cn-beijing.aliyuncs.com", "cn-beijing", "https://pics.oss-cn-beijing.aliyuncs.com/images/a.png"},
		{"https://minio.local/", "", "https://pics.minio.local/images/a.png"},
		{"", "eu-west-1", "https://pics.s3.eu-west-1.amazonaws.com/images/a.png"},
		{"", "", "https://pics.s3.amazonaws.com/images/a.png"},
	}
	for _, tc := range cases {
		if got := buildObjectURL(tc.endpoint, tc.region, "pics", "images/a.png"); got != tc.want {
			t.Errorf("endpoint=%q region=%q: got %s want %s", tc.endpoint, tc.region, got, tc.want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	if endpointURL("s3.example.com") != "https://s3.example.com" {
		t.Fatal("expected https prefix")
	}
	if endpointURL("http://localhost:9000") != "http://localhost:9000" {
		t.Fatal("explicit scheme must be kept")
	}
}
