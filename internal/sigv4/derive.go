package sigv4

import "strings"

// Scope binds a signing key to one day, region and service.
type Scope struct {
	DateStamp string
	Region    string
	Service   string
}

// NewScope builds the scope for t.
func NewScope(t SigningTime, region, service string) Scope {
	return Scope{
		DateStamp: t.ShortTimeFormat(),
		Region:    region,
		Service:   service,
	}
}

// String renders date/region/service/aws4_request.
func (s Scope) String() string {
	return strings.Join([]string{s.DateStamp, s.Region, s.Service, ScopeTerminator}, "/")
}

// DeriveSigningKey runs the HMAC chain
//
//	kDate    = MAC("AWS4" + secret, date)
//	kRegion  = MAC(kDate, region)
//	kService = MAC(kRegion, service)
//	kSigning = MAC(kService, "aws4_request")
//
// Each step keys the next with raw bytes. The result is not cached; callers
// derive it again for every request.
func DeriveSigningKey(h Hasher, secret string, scope Scope) ([]byte, error) {
	key := []byte("AWS4" + secret)
	for _, part := range []string{scope.DateStamp, scope.Region, scope.Service, ScopeTerminator} {
		next, err := mac(h, key, part)
		if err != nil {
			return nil, err
		}
		key = next
	}
	return key, nil
}
