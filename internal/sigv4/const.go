package sigv4

const (
	// Algorithm identifies the signing scheme in Authorization headers,
	// presigned queries and the string to sign.
	Algorithm = "AWS4-HMAC-SHA256"

	// UnsignedPayload replaces the payload digest for presigned GETs.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// EmptyStringSHA256 is the hex encoded SHA-256 of an empty body.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// DefaultRegion and DefaultService are what Cloudflare R2 expects.
	DefaultRegion  = "auto"
	DefaultService = "s3"

	ScopeTerminator = "aws4_request"

	AuthorizationHeader = "Authorization"
	HostHeader          = "Host"
	ContentTypeHeader   = "Content-Type"
	AmzDateHeader       = "X-Amz-Date"
	ContentSHAHeader    = "X-Amz-Content-Sha256"

	AmzAlgorithmKey     = "X-Amz-Algorithm"
	AmzCredentialKey    = "X-Amz-Credential"
	AmzDateKey          = "X-Amz-Date"
	AmzExpiresKey       = "X-Amz-Expires"
	AmzSignedHeadersKey = "X-Amz-SignedHeaders"
	AmzSignatureKey     = "X-Amz-Signature"

	// TimeFormat is the X-Amz-Date layout: YYYYMMDDTHHMMSSZ.
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential scope date layout: YYYYMMDD.
	ShortTimeFormat = "20060102"
)
