package validator

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

const maxImageURLLength = 2048

var allowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".avif"}

// ImagePolicy accepts HTTPS URLs on trusted hosts and paths served from the
// local upload directory.
type ImagePolicy struct {
	hosts       []string
	localPrefix string
}

// NewImagePolicy builds a policy for the given host allowlist. A host entry
// also admits its subdomains.
func NewImagePolicy(hosts []string, localPrefix string) *ImagePolicy {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	if localPrefix == "" {
		localPrefix = "/uploads/"
	}
	return &ImagePolicy{hosts: normalized, localPrefix: localPrefix}
}

func (p *ImagePolicy) Validate(imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return errors.New("image URL cannot be empty")
	}
	if len(imageURL) > maxImageURLLength {
		return errors.New("image URL is too long")
	}

	if strings.HasPrefix(imageURL, p.localPrefix) {
		clean := path.Clean(imageURL)
		if !strings.HasPrefix(clean, p.localPrefix) || strings.Contains(imageURL, "..") {
			return errors.New("invalid upload path")
		}
		return checkExtension(clean)
	}

	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Host == "" {
		return errors.New("invalid image URL format")
	}
	if parsed.Scheme != "https" {
		return errors.New("only HTTPS image URLs are allowed")
	}
	if !p.AllowsHost(parsed.Hostname()) {
		return errors.New("image host is not trusted")
	}
	return nil
}

func (p *ImagePolicy) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range p.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func checkExtension(p string) error {
	if !HasImageExtension(p) {
		return errors.New("upload path must point to an image file")
	}
	return nil
}

// HasImageExtension reports whether name ends in a supported image extension.
func HasImageExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowedImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
