package v1

import (
	metaV1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ScheduledComparisonSpec defines the desired state of ScheduledComparison
type ScheduledComparisonSpec struct {
	// Schedule in Cron format, see https://en.wikipedia.org/wiki/Cron.
	Schedule string `json:"schedule"`

	ComparisonSpec `json:",inline"`
}

// ScheduledComparisonStatus defines the observed state of ScheduledComparison
type ScheduledComparisonStatus struct {
	ComparisonStatus `json:",inline"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Schedule",type=string,JSONPath=`.spec.schedule`
// +kubebuilder:printcolumn:name="Mismatch",type=integer,JSONPath=`.status.mismatchCount`
// +kubebuilder:printcolumn:name="Last",type=date,JSONPath=`.status.lastComparisonTime`

// ScheduledComparison is the schema for the scheduledcomparisons API
type ScheduledComparison struct {
	metaV1.TypeMeta   `json:",inline"`
	metaV1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ScheduledComparisonSpec   `json:"spec,omitempty"`
	Status ScheduledComparisonStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ScheduledComparisonList contains a list of ScheduledComparison
type ScheduledComparisonList struct {
	metaV1.TypeMeta `json:",inline"`
	metaV1.ListMeta `json:"metadata,omitempty"`
	Items           []ScheduledComparison `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ScheduledComparison{}, &ScheduledComparisonList{})
}
