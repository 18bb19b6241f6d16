package bitbucket

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const (
	projectEndpointTemplateConstant        = "%s/rest/api/1.0/projects/%s"
	repositoryEndpointTemplateConstant     = "%s/rest/api/1.0/projects/%s/repos/%s"
	branchListEndpointTemplateConstant     = "%s/rest/api/1.0/projects/%s/repos/%s/branches"
	branchDeletionEndpointTemplateConstant = "%s/rest/branch-utils/1.0/projects/%s/repos/%s/branches"
	filterTextQueryParameterConstant       = "filterText"
	limitQueryParameterConstant            = "limit"
	startQueryParameterConstant            = "start"
	detailsQueryParameterConstant          = "details"
	boostMatchesQueryParameterConstant     = "boostMatches"
	contentTypeHeaderNameConstant          = "Content-Type"
	acceptHeaderNameConstant               = "Accept"
	jsonContentTypeConstant                = "application/json"
	baseURLFieldNameConstant               = "base_url"
	projectKeyFieldNameConstant            = "project_key"
	repositorySlugFieldNameConstant        = "repository_slug"
	branchNameFieldNameConstant            = "branch_name"
	requiredValueMessageConstant           = "value required"
	invalidBaseURLMessageTemplateConstant  = "invalid url: %s"
	defaultBranchListLimitConstant         = 99999
)

// ClientOptions configures construction of the REST client.
type ClientOptions struct {
	BaseURL   string
	Username  string
	Password  string
	Token     string
	VerifyTLS bool
}

// Client issues Bitbucket Server REST requests for project, repository, and branch operations.
type Client struct {
	baseURL    string
	username   string
	password   string
	useToken   bool
	httpClient *http.Client
}

// NewClient assembles an HTTP client honoring the token, basic-auth, and TLS-verification options.
func NewClient(options ClientOptions) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if len(trimmedBaseURL) == 0 {
		return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if _, parseError := url.ParseRequestURI(trimmedBaseURL); parseError != nil {
		return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: fmt.Sprintf(invalidBaseURLMessageTemplateConstant, parseError)}
	}

	trimmedToken := strings.TrimSpace(options.Token)
	if len(trimmedToken) == 0 && len(strings.TrimSpace(options.Username)) == 0 {
		return nil, ErrMissingCredentials
	}

	var transport http.RoundTripper = http.DefaultTransport
	if !options.VerifyTLS {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	if len(trimmedToken) > 0 {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmedToken})
		transport = &oauth2.Transport{Source: tokenSource, Base: transport}
	}

	client := &Client{
		baseURL:    trimmedBaseURL,
		username:   options.Username,
		password:   options.Password,
		useToken:   len(trimmedToken) > 0,
		httpClient: &http.Client{Transport: transport},
	}

	return client, nil
}

// GetProject retrieves project metadata for the provided project key.
func (client *Client) GetProject(executionContext context.Context, projectKey string) (Project, error) {
	trimmedProjectKey := strings.TrimSpace(projectKey)
	if len(trimmedProjectKey) == 0 {
		return Project{}, InvalidInputError{FieldName: projectKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}

	endpoint := fmt.Sprintf(projectEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedProjectKey))

	var project Project
	if requestError := client.executeJSONRequest(executionContext, GetProjectOperationNameConstant, http.MethodGet, endpoint, nil, &project); requestError != nil {
		return Project{}, requestError
	}

	return project, nil
}

// GetRepository retrieves repository metadata for the provided project key and repository slug.
func (client *Client) GetRepository(executionContext context.Context, projectKey string, repositorySlug string) (Repository, error) {
	trimmedProjectKey := strings.TrimSpace(projectKey)
	if len(trimmedProjectKey) == 0 {
		return Repository{}, InvalidInputError{FieldName: projectKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedRepositorySlug := strings.TrimSpace(repositorySlug)
	if len(trimmedRepositorySlug) == 0 {
		return Repository{}, InvalidInputError{FieldName: repositorySlugFieldNameConstant, Message: requiredValueMessageConstant}
	}

	endpoint := fmt.Sprintf(repositoryEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedProjectKey), url.PathEscape(trimmedRepositorySlug))

	var repository Repository
	if requestError := client.executeJSONRequest(executionContext, GetRepositoryOperationNameConstant, http.MethodGet, endpoint, nil, &repository); requestError != nil {
		return Repository{}, requestError
	}

	return repository, nil
}

// ListBranches retrieves every branch of the repository, following server-side paging.
func (client *Client) ListBranches(executionContext context.Context, projectKey string, repositorySlug string, options BranchListOptions) ([]Branch, error) {
	trimmedProjectKey := strings.TrimSpace(projectKey)
	if len(trimmedProjectKey) == 0 {
		return nil, InvalidInputError{FieldName: projectKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedRepositorySlug := strings.TrimSpace(repositorySlug)
	if len(trimmedRepositorySlug) == 0 {
		return nil, InvalidInputError{FieldName: repositorySlugFieldNameConstant, Message: requiredValueMessageConstant}
	}

	resultLimit := options.ResultLimit
	if resultLimit <= 0 {
		resultLimit = defaultBranchListLimitConstant
	}

	endpoint := fmt.Sprintf(branchListEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedProjectKey), url.PathEscape(trimmedRepositorySlug))

	collectedBranches := []Branch{}
	pageStart := 0
	for {
		queryValues := url.Values{}
		queryValues.Set(limitQueryParameterConstant, strconv.Itoa(resultLimit))
		queryValues.Set(detailsQueryParameterConstant, strconv.FormatBool(options.Details))
		queryValues.Set(boostMatchesQueryParameterConstant, strconv.FormatBool(options.BoostMatches))
		if len(options.FilterText) > 0 {
			queryValues.Set(filterTextQueryParameterConstant, options.FilterText)
		}
		if pageStart > 0 {
			queryValues.Set(startQueryParameterConstant, strconv.Itoa(pageStart))
		}

		var page branchPage
		pagedEndpoint := endpoint + "?" + queryValues.Encode()
		if requestError := client.executeJSONRequest(executionContext, ListBranchesOperationNameConstant, http.MethodGet, pagedEndpoint, nil, &page); requestError != nil {
			return nil, requestError
		}

		collectedBranches = append(collectedBranches, page.Values...)

		if page.IsLastPage || page.NextPageStart <= pageStart {
			break
		}
		pageStart = page.NextPageStart
	}

	return collectedBranches, nil
}

// DeleteBranch removes the named branch from the repository.
func (client *Client) DeleteBranch(executionContext context.Context, projectKey string, repositorySlug string, branchName string) error {
	trimmedProjectKey := strings.TrimSpace(projectKey)
	if len(trimmedProjectKey) == 0 {
		return InvalidInputError{FieldName: projectKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedRepositorySlug := strings.TrimSpace(repositorySlug)
	if len(trimmedRepositorySlug) == 0 {
		return InvalidInputError{FieldName: repositorySlugFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return InvalidInputError{FieldName: branchNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	deletionPayload := branchDeletionRequest{Name: trimmedBranchName, DryRun: false}
	encodedPayload, encodeError := json.Marshal(deletionPayload)
	if encodeError != nil {
		return OperationError{Operation: DeleteBranchOperationNameConstant, Cause: encodeError}
	}

	endpoint := fmt.Sprintf(branchDeletionEndpointTemplateConstant, client.baseURL, url.PathEscape(trimmedProjectKey), url.PathEscape(trimmedRepositorySlug))

	return client.executeJSONRequest(executionContext, DeleteBranchOperationNameConstant, http.MethodDelete, endpoint, encodedPayload, nil)
}

func (client *Client) executeJSONRequest(executionContext context.Context, operation OperationName, method string, endpoint string, payload []byte, target any) error {
	var requestBody io.Reader
	if payload != nil {
		requestBody = bytes.NewReader(payload)
	}

	request, requestError := http.NewRequestWithContext(executionContext, method, endpoint, requestBody)
	if requestError != nil {
		return OperationError{Operation: operation, Cause: requestError}
	}

	request.Header.Set(acceptHeaderNameConstant, jsonContentTypeConstant)
	if payload != nil {
		request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)
	}
	if !client.useToken && len(client.username) > 0 {
		request.SetBasicAuth(client.username, client.password)
	}

	response, executionError := client.httpClient.Do(request)
	if executionError != nil {
		return OperationError{Operation: operation, Cause: executionError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return client.buildStatusError(operation, response)
	}

	if target == nil {
		return nil
	}

	if decodeError := json.NewDecoder(response.Body).Decode(target); decodeError != nil {
		return ResponseDecodingError{Operation: operation, Cause: decodeError}
	}

	return nil
}

func (client *Client) buildStatusError(operation OperationName, response *http.Response) error {
	statusError := APIStatusError{Operation: operation, StatusCode: response.StatusCode}

	responseBody, readError := io.ReadAll(response.Body)
	if readError != nil || len(responseBody) == 0 {
		return statusError
	}

	var envelope apiErrorEnvelope
	if unmarshalError := json.Unmarshal(responseBody, &envelope); unmarshalError != nil {
		return statusError
	}

	for _, errorEntry := range envelope.Errors {
		trimmedMessage := strings.TrimSpace(errorEntry.Message)
		if len(trimmedMessage) > 0 {
			statusError.Messages = append(statusError.Messages, trimmedMessage)
		}
	}

	return statusError
}

// ErrMissingCredentials reports construction without any authentication material.
var ErrMissingCredentials = errors.New("bitbucket client requires a username/password pair or a token")
