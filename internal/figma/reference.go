package figma

import (
	"comparison-controller/internal/errs"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/xerrors"
)

var fileKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9]{22}$`)

// Reference identifies one node of a design file.
type Reference struct {
	FileKey string
	// NodeID uses the API form with a colon, e.g. "873:4390".
	NodeID string
}

func (r Reference) String() string {
	return r.FileKey + "/" + r.NodeID
}

// IsDesignURL reports whether raw points at figma.com. It does not check
// that the URL is a usable reference; ParseReference does.
func IsDesignURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "figma.com" || strings.HasSuffix(host, ".figma.com")
}

// ParseReference extracts the file key and node id from a share, design or
// prototype link such as
// https://www.figma.com/proto/rLqGVk83OKICyAhvW7gjFW/Title?node-id=873-4390.
// It never touches the network.
func ParseReference(raw string) (Reference, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Reference{}, errs.New(errs.ErrInvalidReference, raw, xerrors.Errorf("failed to parse URL: %w", err))
	}

	var fileKey string
	for _, segment := range strings.Split(u.Path, "/") {
		if fileKeyPattern.MatchString(segment) {
			fileKey = segment
			break
		}
	}
	if fileKey == "" {
		return Reference{}, errs.New(errs.ErrInvalidReference, raw, xerrors.New("no file key in URL path"))
	}

	nodeID := u.Query().Get("node-id")
	if nodeID == "" {
		return Reference{}, errs.New(errs.ErrInvalidReference, raw, xerrors.New("no node-id query parameter"))
	}

	return Reference{
		FileKey: fileKey,
		NodeID:  NormalizeNodeID(nodeID),
	}, nil
}

// NormalizeNodeID turns the dashed form used in browser URLs into the colon
// form the REST API answers with.
func NormalizeNodeID(nodeID string) string {
	if strings.Contains(nodeID, ":") {
		return nodeID
	}
	return strings.Replace(nodeID, "-", ":", 1)
}
