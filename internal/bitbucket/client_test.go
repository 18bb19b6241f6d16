package bitbucket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidycloud/bbsweep/internal/bitbucket"
)

const (
	testProjectKeyConstant              = "ISPJ"
	testRepositorySlugConstant          = "repo1"
	testUsernameConstant                = "operator"
	testPasswordConstant                = "secret"
	testTokenConstant                   = "access-token"
	testProjectNameConstant             = "Integration Services"
	testRepositoryNameConstant          = "Repository One"
	testRepositoryStateConstant         = "AVAILABLE"
	testDefaultBranchNameConstant       = "main"
	testSecondPageBranchNameConstant    = "feature/paged"
	testDeletionTargetBranchConstant    = "feature/doomed"
	projectPathTemplateConstant         = "/rest/api/1.0/projects/%s"
	repositoryPathTemplateConstant      = "/rest/api/1.0/projects/%s/repos/%s"
	branchListPathTemplateConstant      = "/rest/api/1.0/projects/%s/repos/%s/branches"
	branchDeletionPathTemplateConstant  = "/rest/branch-utils/1.0/projects/%s/repos/%s/branches"
	bearerTokenHeaderTemplateConstant   = "Bearer %s"
	authorizationHeaderNameConstant     = "Authorization"
	missingBranchErrorMessageConstant   = "The branch does not exist"
	repositoryNotFoundMessageConstant   = "Repository repo1 does not exist"
	errorEnvelopeTemplateConstant       = `{"errors":[{"message":%q,"exceptionName":"com.atlassian.bitbucket.NoSuchEntityException"}]}`
	startQueryParameterNameConstant     = "start"
	limitQueryParameterNameConstant     = "limit"
	detailsQueryParameterNameConstant   = "details"
	expectedDefaultLimitValueConstant   = "99999"
	secondPageStartValueConstant        = "1"
	expectedDeletionPayloadConstant     = `{"name":"feature/doomed","dryRun":false}`
	invalidJSONResponseBodyConstant     = "not-json"
	emptyProjectKeyValueConstant        = "   "
	missingServerURLPlaceholderConstant = "http://unused.invalid"
)

func newBasicAuthClient(testInstance *testing.T, serverURL string) *bitbucket.Client {
	testInstance.Helper()

	client, clientError := bitbucket.NewClient(bitbucket.ClientOptions{
		BaseURL:   serverURL,
		Username:  testUsernameConstant,
		Password:  testPasswordConstant,
		VerifyTLS: true,
	})
	require.NoError(testInstance, clientError)

	return client
}

func TestNewClientValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       bitbucket.ClientOptions
		expectedError error
	}{
		{
			name:    "missing_base_url",
			options: bitbucket.ClientOptions{Username: testUsernameConstant},
		},
		{
			name:          "missing_credentials",
			options:       bitbucket.ClientOptions{BaseURL: missingServerURLPlaceholderConstant},
			expectedError: bitbucket.ErrMissingCredentials,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			client, clientError := bitbucket.NewClient(testCase.options)
			require.Error(testInstance, clientError)
			require.Nil(testInstance, client)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, clientError, testCase.expectedError)
			}
		})
	}
}

func TestGetProjectSendsBasicAuthAndDecodesResponse(testInstance *testing.T) {
	expectedPath := fmt.Sprintf(projectPathTemplateConstant, testProjectKeyConstant)

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodGet, request.Method)
		require.Equal(testInstance, expectedPath, request.URL.Path)

		suppliedUsername, suppliedPassword, basicAuthProvided := request.BasicAuth()
		require.True(testInstance, basicAuthProvided)
		require.Equal(testInstance, testUsernameConstant, suppliedUsername)
		require.Equal(testInstance, testPasswordConstant, suppliedPassword)

		responseWriter.Header().Set("Content-Type", "application/json")
		json.NewEncoder(responseWriter).Encode(bitbucket.Project{Key: testProjectKeyConstant, ID: 7, Name: testProjectNameConstant})
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	project, projectError := client.GetProject(context.Background(), testProjectKeyConstant)
	require.NoError(testInstance, projectError)
	require.Equal(testInstance, testProjectKeyConstant, project.Key)
	require.Equal(testInstance, testProjectNameConstant, project.Name)
}

func TestGetProjectRejectsEmptyProjectKey(testInstance *testing.T) {
	client := newBasicAuthClient(testInstance, missingServerURLPlaceholderConstant)

	_, projectError := client.GetProject(context.Background(), emptyProjectKeyValueConstant)

	var invalidInput bitbucket.InvalidInputError
	require.ErrorAs(testInstance, projectError, &invalidInput)
}

func TestGetRepositoryDecodesResponse(testInstance *testing.T) {
	expectedPath := fmt.Sprintf(repositoryPathTemplateConstant, testProjectKeyConstant, testRepositorySlugConstant)

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, expectedPath, request.URL.Path)

		responseWriter.Header().Set("Content-Type", "application/json")
		json.NewEncoder(responseWriter).Encode(bitbucket.Repository{
			Slug:    testRepositorySlugConstant,
			ID:      11,
			Name:    testRepositoryNameConstant,
			State:   testRepositoryStateConstant,
			Project: bitbucket.Project{Key: testProjectKeyConstant},
		})
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	repository, repositoryError := client.GetRepository(context.Background(), testProjectKeyConstant, testRepositorySlugConstant)
	require.NoError(testInstance, repositoryError)
	require.Equal(testInstance, testRepositorySlugConstant, repository.Slug)
	require.Equal(testInstance, testProjectKeyConstant, repository.Project.Key)
}

func TestGetRepositoryMapsErrorEnvelope(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "application/json")
		responseWriter.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(responseWriter, errorEnvelopeTemplateConstant, repositoryNotFoundMessageConstant)
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	_, repositoryError := client.GetRepository(context.Background(), testProjectKeyConstant, testRepositorySlugConstant)

	var statusError bitbucket.APIStatusError
	require.ErrorAs(testInstance, repositoryError, &statusError)
	require.Equal(testInstance, http.StatusNotFound, statusError.StatusCode)
	require.Equal(testInstance, bitbucket.GetRepositoryOperationNameConstant, statusError.Operation)
	require.Contains(testInstance, statusError.Messages, repositoryNotFoundMessageConstant)
	require.Contains(testInstance, repositoryError.Error(), repositoryNotFoundMessageConstant)
}

func TestListBranchesFollowsPaging(testInstance *testing.T) {
	expectedPath := fmt.Sprintf(branchListPathTemplateConstant, testProjectKeyConstant, testRepositorySlugConstant)
	servedRequests := 0

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, expectedPath, request.URL.Path)
		require.Equal(testInstance, expectedDefaultLimitValueConstant, request.URL.Query().Get(limitQueryParameterNameConstant))
		require.Equal(testInstance, "true", request.URL.Query().Get(detailsQueryParameterNameConstant))

		servedRequests++
		responseWriter.Header().Set("Content-Type", "application/json")

		if request.URL.Query().Get(startQueryParameterNameConstant) == secondPageStartValueConstant {
			fmt.Fprintf(responseWriter, `{"size":1,"isLastPage":true,"start":1,"values":[{"id":"refs/heads/%s","displayId":%q,"isDefault":false}]}`, testSecondPageBranchNameConstant, testSecondPageBranchNameConstant)
			return
		}

		fmt.Fprintf(responseWriter, `{"size":1,"isLastPage":false,"start":0,"nextPageStart":1,"values":[{"id":"refs/heads/%s","displayId":%q,"isDefault":true}]}`, testDefaultBranchNameConstant, testDefaultBranchNameConstant)
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	branches, listError := client.ListBranches(context.Background(), testProjectKeyConstant, testRepositorySlugConstant, bitbucket.BranchListOptions{Details: true})
	require.NoError(testInstance, listError)
	require.Equal(testInstance, 2, servedRequests)
	require.Len(testInstance, branches, 2)
	require.Equal(testInstance, testDefaultBranchNameConstant, branches[0].DisplayID)
	require.True(testInstance, branches[0].IsDefault)
	require.Equal(testInstance, testSecondPageBranchNameConstant, branches[1].DisplayID)
}

func TestListBranchesReportsDecodingFailure(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		io.WriteString(responseWriter, invalidJSONResponseBodyConstant)
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	_, listError := client.ListBranches(context.Background(), testProjectKeyConstant, testRepositorySlugConstant, bitbucket.BranchListOptions{})

	var decodingError bitbucket.ResponseDecodingError
	require.ErrorAs(testInstance, listError, &decodingError)
	require.Equal(testInstance, bitbucket.ListBranchesOperationNameConstant, decodingError.Operation)
}

func TestDeleteBranchSendsDeletionPayload(testInstance *testing.T) {
	expectedPath := fmt.Sprintf(branchDeletionPathTemplateConstant, testProjectKeyConstant, testRepositorySlugConstant)

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodDelete, request.Method)
		require.Equal(testInstance, expectedPath, request.URL.Path)

		requestBody, readError := io.ReadAll(request.Body)
		require.NoError(testInstance, readError)
		require.JSONEq(testInstance, expectedDeletionPayloadConstant, string(requestBody))

		responseWriter.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	deletionError := client.DeleteBranch(context.Background(), testProjectKeyConstant, testRepositorySlugConstant, testDeletionTargetBranchConstant)
	require.NoError(testInstance, deletionError)
}

func TestDeleteBranchMapsErrorEnvelope(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "application/json")
		responseWriter.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(responseWriter, errorEnvelopeTemplateConstant, missingBranchErrorMessageConstant)
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL)

	deletionError := client.DeleteBranch(context.Background(), testProjectKeyConstant, testRepositorySlugConstant, testDeletionTargetBranchConstant)

	var statusError bitbucket.APIStatusError
	require.ErrorAs(testInstance, deletionError, &statusError)
	require.Equal(testInstance, bitbucket.DeleteBranchOperationNameConstant, statusError.Operation)
	require.Equal(testInstance, http.StatusBadRequest, statusError.StatusCode)
	require.Contains(testInstance, statusError.Messages, missingBranchErrorMessageConstant)
}

func TestTokenAuthenticationSendsBearerHeader(testInstance *testing.T) {
	expectedAuthorizationHeader := fmt.Sprintf(bearerTokenHeaderTemplateConstant, testTokenConstant)

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, expectedAuthorizationHeader, request.Header.Get(authorizationHeaderNameConstant))

		_, _, basicAuthProvided := request.BasicAuth()
		require.False(testInstance, basicAuthProvided)

		responseWriter.Header().Set("Content-Type", "application/json")
		json.NewEncoder(responseWriter).Encode(bitbucket.Project{Key: testProjectKeyConstant})
	}))
	defer server.Close()

	client, clientError := bitbucket.NewClient(bitbucket.ClientOptions{
		BaseURL:   server.URL,
		Token:     testTokenConstant,
		VerifyTLS: true,
	})
	require.NoError(testInstance, clientError)

	_, projectError := client.GetProject(context.Background(), testProjectKeyConstant)
	require.NoError(testInstance, projectError)
}

func TestNewClientTrimsTrailingSlash(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.False(testInstance, strings.Contains(request.URL.Path, "//"))

		responseWriter.Header().Set("Content-Type", "application/json")
		json.NewEncoder(responseWriter).Encode(bitbucket.Project{Key: testProjectKeyConstant})
	}))
	defer server.Close()

	client := newBasicAuthClient(testInstance, server.URL+"/")

	_, projectError := client.GetProject(context.Background(), testProjectKeyConstant)
	require.NoError(testInstance, projectError)
}
