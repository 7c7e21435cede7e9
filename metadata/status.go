package metadata

import (
	"encoding/base64"

	"kinetic/session"
)

// Retrieve and deploy share the platform's done/success protocol: keep
// polling while done is false, then read success. There is no aborted
// state on this API.

type retrieveStatusPayload struct {
	Done           bool                  `xml:"done"`
	Success        bool                  `xml:"success"`
	Status         string                `xml:"status"`
	ZipFile        string                `xml:"zipFile"`
	FileProperties []FileProperty        `xml:"fileProperties"`
	Messages       []retrieveMessageElem `xml:"messages"`
}

type retrieveMessageElem struct {
	FileName string `xml:"fileName"`
	Problem  string `xml:"problem"`
	Message  string `xml:"message"`
}

// FileProperty describes one component in a retrieve result.
type FileProperty struct {
	FileName string `xml:"fileName"`
	FullName string `xml:"fullName"`
	Type     string `xml:"type"`
}

type retrieveStatus struct {
	id             string
	done           bool
	success        bool
	status         string
	zipData        []byte
	fileProperties []FileProperty
	messages       []string
}

func (p retrieveStatusPayload) toStatus(asyncID string) (retrieveStatus, error) {
	s := retrieveStatus{
		id:             asyncID,
		done:           p.Done,
		success:        p.Success,
		status:         p.Status,
		fileProperties: p.FileProperties,
	}

	for _, m := range p.Messages {
		msg := m.Message
		if msg == "" {
			msg = m.Problem
		}
		if msg != "" {
			s.messages = append(s.messages, msg)
		}
	}

	if p.Done && p.Success && p.ZipFile != "" {
		data, err := base64.StdEncoding.DecodeString(p.ZipFile)
		if err != nil {
			return retrieveStatus{}, &session.DecodeError{What: "retrieve zip payload", Err: err}
		}
		s.zipData = data
	}

	return s, nil
}

func (s retrieveStatus) JobRef() string { return s.id }

func (s retrieveStatus) StateName() string {
	if s.status != "" {
		return s.status
	}
	if s.done {
		return "Done"
	}
	return "InProgress"
}

func (s retrieveStatus) Terminal() bool  { return s.done }
func (s retrieveStatus) Succeeded() bool { return s.done && s.success }
func (s retrieveStatus) Aborted() bool   { return false }

type deployStatusPayload struct {
	Done    bool   `xml:"done"`
	Success bool   `xml:"success"`
	Status  string `xml:"status"`
	Details struct {
		ComponentSuccesses []ComponentSuccess `xml:"componentSuccesses"`
		ComponentFailures  []ComponentFailure `xml:"componentFailures"`
	} `xml:"details"`
}

// ComponentSuccess identifies one component a deploy applied.
type ComponentSuccess struct {
	FileName string `xml:"fileName"`
	FullName string `xml:"fullName"`
}

// ComponentFailure carries the platform's diagnosis for a component
// the deploy rejected.
type ComponentFailure struct {
	FileName    string `xml:"fileName"`
	FullName    string `xml:"fullName"`
	Problem     string `xml:"problem"`
	ProblemType string `xml:"problemType"`
}

type deployStatus struct {
	id        string
	done      bool
	success   bool
	status    string
	successes []ComponentSuccess
	failures  []ComponentFailure
}

func (p deployStatusPayload) toStatus(asyncID string) deployStatus {
	return deployStatus{
		id:        asyncID,
		done:      p.Done,
		success:   p.Success,
		status:    p.Status,
		successes: p.Details.ComponentSuccesses,
		failures:  p.Details.ComponentFailures,
	}
}

func (s deployStatus) JobRef() string { return s.id }

func (s deployStatus) StateName() string {
	if s.status != "" {
		return s.status
	}
	if s.done {
		return "Done"
	}
	return "InProgress"
}

func (s deployStatus) Terminal() bool  { return s.done }
func (s deployStatus) Succeeded() bool { return s.done && s.success }
func (s deployStatus) Aborted() bool   { return false }

// RetrieveResult is the outcome of a finished retrieve.
type RetrieveResult struct {
	ID             string
	Status         string
	Success        bool
	FileProperties []FileProperty
	Messages       []string
}

func (r *RetrieveResult) FileCount() int { return len(r.FileProperties) }

// DeployResult is the outcome of a finished deploy.
type DeployResult struct {
	ID        string
	Status    string
	Success   bool
	Successes []ComponentSuccess
	Failures  []ComponentFailure
}

func (r *DeployResult) SuccessCount() int { return len(r.Successes) }
func (r *DeployResult) FailureCount() int { return len(r.Failures) }
