package metadata

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"kinetic/session"
)

// The Metadata API speaks SOAP. Requests are built from templates and
// responses are decoded with encoding/xml; the envelope carries the
// session token in a SessionHeader instead of an Authorization header.

const soapEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:met="http://soap.sforce.com/2006/04/metadata">
  <soapenv:Header>
    <met:SessionHeader>
      <met:sessionId>%s</met:sessionId>
    </met:SessionHeader>
  </soapenv:Header>
  <soapenv:Body>
%s
  </soapenv:Body>
</soapenv:Envelope>`

// SOAPFault is a fault response from the Metadata API endpoint.
type SOAPFault struct {
	Code    string
	Message string
}

func (e *SOAPFault) Error() string {
	return fmt.Sprintf("soap fault [%s]: %s", e.Code, e.Message)
}

type soapClient struct {
	sess *session.Session
}

type soapFaultPayload struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type soapResponse struct {
	Body struct {
		Fault *soapFaultPayload `xml:"Fault"`
		Inner []byte            `xml:",innerxml"`
	} `xml:"Body"`
}

// call posts a SOAP body to the metadata endpoint and returns the raw
// inner XML of the response body. Faults come back as *SOAPFault.
func (s *soapClient) call(ctx context.Context, body string) ([]byte, error) {
	envelope := fmt.Sprintf(soapEnvelope, xmlEscape(s.sess.AccessToken), body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sess.SoapURL(), strings.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to create soap request: %w", err)
	}

	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := s.sess.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soap request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed soapResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &session.DecodeError{What: "soap response", Err: err}
	}

	if parsed.Body.Fault != nil {
		return nil, &SOAPFault{
			Code:    parsed.Body.Fault.FaultCode,
			Message: parsed.Body.Fault.FaultString,
		}
	}

	return parsed.Body.Inner, nil
}

// asyncResult is the common shape of retrieve/deploy responses that
// hand back an async process id.
type asyncResult struct {
	Result struct {
		ID string `xml:"id"`
	} `xml:"result"`
}

func decodeAsyncID(inner []byte, what string) (string, error) {
	var r asyncResult
	if err := xml.Unmarshal(inner, &r); err != nil {
		return "", &session.DecodeError{What: what, Err: err}
	}
	if r.Result.ID == "" {
		return "", &session.DecodeError{What: what, Err: fmt.Errorf("missing async process id")}
	}

	return r.Result.ID, nil
}

func (s *soapClient) retrieve(ctx context.Context, packageXML string) (string, error) {
	body := fmt.Sprintf(`    <met:retrieve>
      <met:retrieveRequest>
        <met:apiVersion>%s</met:apiVersion>
        <met:unpackaged>%s</met:unpackaged>
      </met:retrieveRequest>
    </met:retrieve>`,
		bareVersion(s.sess.APIVersion),
		base64.StdEncoding.EncodeToString([]byte(packageXML)))

	inner, err := s.call(ctx, body)
	if err != nil {
		return "", err
	}

	return decodeAsyncID(inner, "retrieve response")
}

func (s *soapClient) checkRetrieveStatus(ctx context.Context, asyncID string) (retrieveStatus, error) {
	body := fmt.Sprintf(`    <met:checkRetrieveStatus>
      <met:asyncProcessId>%s</met:asyncProcessId>
    </met:checkRetrieveStatus>`, xmlEscape(asyncID))

	inner, err := s.call(ctx, body)
	if err != nil {
		return retrieveStatus{}, err
	}

	var r struct {
		Result retrieveStatusPayload `xml:"result"`
	}
	if err := xml.Unmarshal(inner, &r); err != nil {
		return retrieveStatus{}, &session.DecodeError{What: "checkRetrieveStatus response", Err: err}
	}

	return r.Result.toStatus(asyncID)
}

func (s *soapClient) deploy(ctx context.Context, zipData []byte, opts DeployOptions) (string, error) {
	body := fmt.Sprintf(`    <met:deploy>
      <met:ZipFile>%s</met:ZipFile>
      <met:DeployOptions>
        <met:checkOnly>%t</met:checkOnly>
        <met:rollbackOnError>%t</met:rollbackOnError>
        <met:runTests>%t</met:runTests>
      </met:DeployOptions>
    </met:deploy>`,
		base64.StdEncoding.EncodeToString(zipData),
		opts.CheckOnly, !opts.NoRollback, opts.RunTests)

	inner, err := s.call(ctx, body)
	if err != nil {
		return "", err
	}

	return decodeAsyncID(inner, "deploy response")
}

func (s *soapClient) checkDeployStatus(ctx context.Context, asyncID string) (deployStatus, error) {
	body := fmt.Sprintf(`    <met:checkDeployStatus>
      <met:asyncProcessId>%s</met:asyncProcessId>
    </met:checkDeployStatus>`, xmlEscape(asyncID))

	inner, err := s.call(ctx, body)
	if err != nil {
		return deployStatus{}, err
	}

	var r struct {
		Result deployStatusPayload `xml:"result"`
	}
	if err := xml.Unmarshal(inner, &r); err != nil {
		return deployStatus{}, &session.DecodeError{What: "checkDeployStatus response", Err: err}
	}

	return r.Result.toStatus(asyncID), nil
}

func (s *soapClient) describeMetadata(ctx context.Context) (*DescribeResult, error) {
	body := fmt.Sprintf(`    <met:describeMetadata>
      <met:asOfVersion>%s</met:asOfVersion>
    </met:describeMetadata>`, bareVersion(s.sess.APIVersion))

	inner, err := s.call(ctx, body)
	if err != nil {
		return nil, err
	}

	var r struct {
		Result DescribeResult `xml:"result"`
	}
	if err := xml.Unmarshal(inner, &r); err != nil {
		return nil, &session.DecodeError{What: "describeMetadata response", Err: err}
	}

	return &r.Result, nil
}

// DescribeResult lists the metadata component types the org exposes.
type DescribeResult struct {
	OrganizationNamespace string           `xml:"organizationNamespace"`
	PartialSaveAllowed    bool             `xml:"partialSaveAllowed"`
	TestRequired          bool             `xml:"testRequired"`
	MetadataObjects       []MetadataObject `xml:"metadataObjects"`
}

type MetadataObject struct {
	DirectoryName string `xml:"directoryName"`
	TypeName      string `xml:"xmlName"`
	Suffix        string `xml:"suffix"`
}

func bareVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
