package v1

import (
	metaV1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ComparisonSpec defines the desired state of Comparison
type ComparisonSpec struct {
	// Baseline is the reference string of the baseline image: a page URL, a
	// Figma design URL, or a storage URL.
	Baseline string `json:"baseline"`
	// Reference is the reference string of the image compared against the baseline
	Reference string `json:"reference"`
	// Width of the capture viewport. Ignored when either side is a design.
	// +kubebuilder:validation:Minimum=0
	Width int32 `json:"width,omitempty"`
	// Height of the capture viewport. Ignored when either side is a design.
	// +kubebuilder:validation:Minimum=0
	Height int32 `json:"height,omitempty"`
	// Opacity of the reference in the overlay image (0.0 to 1.0)
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=1
	Opacity *float64 `json:"opacity,omitempty"`
	// Threshold is the matching sensitivity of the diff (0.0 to 1.0); lower is stricter
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=1
	Threshold *float64 `json:"threshold,omitempty"`
	// IncludeAA counts anti-aliased pixels as differences
	IncludeAA bool `json:"includeAA,omitempty"`
	// DiffFormat specifies the format for diff generation ("pixel" or "rectangle")
	// +kubebuilder:validation:Enum=pixel;rectangle
	// +kubebuilder:default="pixel"
	DiffFormat string `json:"diffFormat,omitempty"`
	// MaskSelectors are CSS selectors of elements hidden before a page is captured
	MaskSelectors []string `json:"maskSelectors,omitempty"`
	// Headers are extra HTTP headers sent when a page is captured
	Headers map[string]string `json:"headers,omitempty"`
}

// ComparisonStatus defines the observed state of Comparison
type ComparisonStatus struct {
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
	// OverlayURL is the storage URL where the overlay image is stored
	OverlayURL string `json:"overlayURL,omitempty"`
	// DiffURL is the storage URL where the diff image is stored
	DiffURL string `json:"diffURL,omitempty"`
	// MismatchCount is the number of differing pixels
	MismatchCount int64 `json:"mismatchCount,omitempty"`
	// DiffAmount is the ratio of difference (0.0 to 1.0)
	// +kubebuilder:validation:Minimum=0
	// +kubebuilder:validation:Maximum=1
	DiffAmount float64 `json:"diffAmount,omitempty"`
	Width      int32   `json:"width,omitempty"`
	Height     int32   `json:"height,omitempty"`
	// LastComparisonTime is the time when the last comparison finished
	LastComparisonTime *metaV1.Time `json:"lastComparisonTime,omitempty"`
	// Error describes why the last comparison failed. Cleared on success.
	Error string `json:"error,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Mismatch",type=integer,JSONPath=`.status.mismatchCount`
// +kubebuilder:printcolumn:name="Diff",type=number,JSONPath=`.status.diffAmount`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// Comparison is the schema for the comparisons API
type Comparison struct {
	metaV1.TypeMeta   `json:",inline"`
	metaV1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ComparisonSpec   `json:"spec,omitempty"`
	Status ComparisonStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ComparisonList contains a list of Comparison
type ComparisonList struct {
	metaV1.TypeMeta `json:",inline"`
	metaV1.ListMeta `json:"metadata,omitempty"`
	Items           []Comparison `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Comparison{}, &ComparisonList{})
}
