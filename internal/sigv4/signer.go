// Package sigv4 implements presigned-URL generation for S3-compatible object
// storage using the AWS Signature Version 4 query-string scheme.
//
// The signer is deterministic: given the same credentials, clock and request
// parameters it always produces a byte-identical signature. Payloads are
// never signed (UNSIGNED-PAYLOAD), which is the standard mode for presigned
// URLs.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	algorithm     = "AWS4-HMAC-SHA256"
	terminator    = "aws4_request"
	unsignedBody  = "UNSIGNED-PAYLOAD"
	signedHeaders = "host"

	timeFormat = "20060102T150405Z"
	dateFormat = "20060102"

	// MaxExpiry caps how far in the future a presigned URL may remain valid.
	// Requests above the cap are clamped, not rejected.
	MaxExpiry = 24 * time.Hour

	// MinExpiry is the floor applied to nonsensical (zero/negative) expiries.
	MinExpiry = 1 * time.Second
)

// Credentials identify the signing principal against the storage backend.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Signer produces presigned URLs for a fixed region/service pair.
type Signer struct {
	creds   Credentials
	region  string
	service string
}

// NewSigner constructs a Signer. The service name for S3-compatible backends
// is normally "s3".
func NewSigner(creds Credentials, region, service string) *Signer {
	return &Signer{creds: creds, region: region, service: service}
}

// PresignInput describes one request to be presigned.
type PresignInput struct {
	// Method is the HTTP method the URL grants ("PUT", "GET", "HEAD", "DELETE").
	Method string

	// Endpoint is the scheme+host of the storage service, e.g.
	// "https://storage.example.com". A trailing slash is tolerated.
	Endpoint string

	// Path is the object path starting with '/', e.g. "/bucket/tours/key.zip".
	Path string

	// Expires is the requested validity window. Clamped to [MinExpiry, MaxExpiry].
	Expires time.Duration

	// SigningTime fixes the timestamp embedded in the URL. Callers pass
	// time.Now() in production; tests pass a constant to get reproducible
	// signatures.
	SigningTime time.Time

	// Query holds additional query parameters to include in the signed
	// canonical query string, e.g. policy condition fields. All of them are
	// covered by the signature and cannot be tampered with.
	Query url.Values
}

// PresignedRequest is the result of signing: the full URL plus the parts a
// client or test may want to inspect. It is derived state, never persisted.
type PresignedRequest struct {
	URL       string
	Method    string
	Signature string
	ExpiresAt time.Time
}

// Presign builds a presigned URL for the given input.
//
// The algorithm follows the four SigV4 steps:
//  1. canonical request: method, URI-encoded path, sorted+encoded query
//     (algorithm, credential scope, timestamp, expiry, signed headers),
//     the lower-cased host header block, the signed-header list and the
//     UNSIGNED-PAYLOAD placeholder;
//  2. string-to-sign: algorithm, timestamp, credential scope and the SHA-256
//     of the canonical request;
//  3. signing key: HMAC-SHA256 chain over date, region, service, terminator;
//  4. signature: HMAC-SHA256 of the string-to-sign, hex-encoded.
func (s *Signer) Presign(in PresignInput) (*PresignedRequest, error) {
	if s.creds.AccessKey == "" || s.creds.SecretKey == "" {
		return nil, fmt.Errorf("sigv4: empty credentials")
	}
	if in.Method == "" || in.Endpoint == "" {
		return nil, fmt.Errorf("sigv4: method and endpoint are required")
	}
	if !strings.HasPrefix(in.Path, "/") {
		return nil, fmt.Errorf("sigv4: path must start with '/'")
	}

	endpoint, err := url.Parse(strings.TrimSuffix(in.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("sigv4: parsing endpoint: %w", err)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("sigv4: endpoint has no host")
	}

	expires := clampExpiry(in.Expires)

	ts := in.SigningTime.UTC()
	amzDate := ts.Format(timeFormat)
	dateStamp := ts.Format(dateFormat)
	scope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, s.region, s.service, terminator)

	query := url.Values{}
	for k, vs := range in.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("X-Amz-Algorithm", algorithm)
	query.Set("X-Amz-Credential", s.creds.AccessKey+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.Itoa(int(expires.Seconds())))
	query.Set("X-Amz-SignedHeaders", signedHeaders)

	canonicalQuery := canonicalQueryString(query)

	canonicalRequest := strings.Join([]string{
		in.Method,
		canonicalURI(in.Path),
		canonicalQuery,
		"host:" + strings.ToLower(endpoint.Host) + "\n",
		signedHeaders,
		unsignedBody,
	}, "\n")

	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		sha256Hex(canonicalRequest),
	}, "\n")

	signingKey := s.deriveSigningKey(dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	u := endpoint.String() + canonicalURI(in.Path) + "?" + canonicalQuery + "&X-Amz-Signature=" + signature

	return &PresignedRequest{
		URL:       u,
		Method:    in.Method,
		Signature: signature,
		ExpiresAt: ts.Add(expires),
	}, nil
}

// deriveSigningKey chains the secret through date, region, service and the
// fixed terminator, per the SigV4 key-derivation scheme.
func (s *Signer) deriveSigningKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.creds.SecretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(s.region))
	kService := hmacSHA256(kRegion, []byte(s.service))
	return hmacSHA256(kService, []byte(terminator))
}

func clampExpiry(d time.Duration) time.Duration {
	if d < MinExpiry {
		return MinExpiry
	}
	if d > MaxExpiry {
		return MaxExpiry
	}
	return d
}

// canonicalQueryString sorts parameters by key and encodes each key and value
// per SigV4 rules. Repeated keys keep their insertion order after the sort.
func canonicalQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range query[k] {
			parts = append(parts, uriEncode(k)+"="+uriEncode(v))
		}
	}

	return strings.Join(parts, "&")
}

// canonicalURI normalizes a URI path by URI-encoding each path segment.
func canonicalURI(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = uriEncode(seg)
	}
	return strings.Join(segments, "/")
}

// uriEncode encodes a string per SigV4 rules (spaces as %20, not +).
func uriEncode(s string) string {
	encoded := url.QueryEscape(s)
	return strings.ReplaceAll(encoded, "+", "%20")
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
