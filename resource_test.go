package restive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/restive-dev/restive"
	"github.com/restive-dev/restive/memstore"
	"github.com/restive-dev/restive/naiveauth"
	"github.com/stretchr/testify/suite"
)

type apiEnvelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type ResourceSuite struct {
	suite.Suite
	coll    *memstore.Collection
	api     *restive.API
	handler http.Handler
}

func TestResourceSuite(t *testing.T) {
	suite.Run(t, new(ResourceSuite))
}

func (s *ResourceSuite) SetupTest() {
	var err error
	s.coll = memstore.NewCollection("widgets")
	s.api, err = restive.New(nil)
	s.Require().NoError(err)
	s.Require().NoError(s.api.AddResource(s.coll, nil))
	s.handler, err = s.api.Handler()
	s.Require().NoError(err)
}

func (s *ResourceSuite) do(method, path string, body restive.Record) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func (s *ResourceSuite) decode(rec *httptest.ResponseRecorder) apiEnvelope {
	env := apiEnvelope{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))

	return env
}

func (s *ResourceSuite) data(rec *httptest.ResponseRecorder) map[string]interface{} {
	doc, ok := s.decode(rec).Data.(map[string]interface{})
	s.Require().True(ok)

	return doc
}

func (s *ResourceSuite) TestCreateThenGetRoundTrip() {
	rec := s.do(http.MethodPost, "/api/widgets", restive.Record{"name": "sprocket", "size": 3})
	s.Require().Equal(http.StatusCreated, rec.Code)

	created := s.data(rec)
	s.Equal("sprocket", created["name"])
	id, ok := created["_id"].(string)
	s.Require().True(ok)
	s.NotEmpty(id)

	rec = s.do(http.MethodGet, "/api/widgets/"+id, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("sprocket", s.data(rec)["name"])
}

func (s *ResourceSuite) TestListEmptyIsStillSuccess() {
	rec := s.do(http.MethodGet, "/api/widgets", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	env := s.decode(rec)
	s.Equal(restive.StatusSuccess, env.Status)
	s.Equal([]interface{}{}, env.Data)
}

func (s *ResourceSuite) TestListFiltersWithCoercedQuery() {
	ctx := context.Background()
	for i, size := range []float64{30, 30, 7} {
		_, err := s.coll.Insert(ctx, restive.Record{"_id": fmt.Sprint(i), "size": size})
		s.Require().NoError(err)
	}

	rec := s.do(http.MethodGet, "/api/widgets?size=30", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	docs, ok := s.decode(rec).Data.([]interface{})
	s.Require().True(ok)
	s.Len(docs, 2)
}

func (s *ResourceSuite) TestGetMissingIsNoContent() {
	rec := s.do(http.MethodGet, "/api/widgets/nope", nil)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("Item not found", s.decode(rec).Message)
}

func (s *ResourceSuite) TestURLParamBeatsQuerySelector() {
	ctx := context.Background()
	_, err := s.coll.Insert(ctx, restive.Record{"_id": "42", "name": "real"})
	s.Require().NoError(err)
	_, err = s.coll.Insert(ctx, restive.Record{"_id": "99", "name": "decoy"})
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/api/widgets/42?_id=99", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("real", s.data(rec)["name"])
}

func (s *ResourceSuite) TestReplaceRewritesDocument() {
	_, err := s.coll.Insert(context.Background(), restive.Record{"_id": "w1", "name": "old", "size": 3})
	s.Require().NoError(err)

	rec := s.do(http.MethodPut, "/api/widgets/w1", restive.Record{"name": "new"})
	s.Require().Equal(http.StatusOK, rec.Code)

	doc := s.data(rec)
	s.Equal("new", doc["name"])
	s.NotContains(doc, "size")
}

func (s *ResourceSuite) TestPatchMergesFields() {
	_, err := s.coll.Insert(context.Background(), restive.Record{"_id": "w1", "name": "old", "size": 3})
	s.Require().NoError(err)

	rec := s.do(http.MethodPatch, "/api/widgets/w1", restive.Record{"name": "new"})
	s.Require().Equal(http.StatusOK, rec.Code)

	doc := s.data(rec)
	s.Equal("new", doc["name"])
	s.Equal(float64(3), doc["size"])
}

func (s *ResourceSuite) TestUpdateMissingIsBadRequest() {
	rec := s.do(http.MethodPut, "/api/widgets/nope", restive.Record{"name": "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Item not updated", s.decode(rec).Message)
}

func (s *ResourceSuite) TestDeleteThenDeleteAgain() {
	_, err := s.coll.Insert(context.Background(), restive.Record{"_id": "w1"})
	s.Require().NoError(err)

	rec := s.do(http.MethodDelete, "/api/widgets/w1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("Item removed", s.data(rec)["message"])

	rec = s.do(http.MethodGet, "/api/widgets/w1", nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/api/widgets/w1", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Could not delete item", s.decode(rec).Message)
}

func TestResourceExcludeAndOverride(t *testing.T) {
	coll := memstore.NewCollection("widgets")
	api, err := restive.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	overridden := false
	err = api.AddResource(coll, &restive.ResourceOptions{
		Exclude: []restive.Operation{restive.OpRemove},
		Overrides: map[restive.Operation]*restive.EndpointAction{
			restive.OpList: {Handler: func(ctx context.Context, rc *restive.RequestContext) (*restive.Response, error) {
				overridden = true
				return restive.Success("custom"), nil
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	handler, err := api.Handler()
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widgets", nil))
	if rec.Code != http.StatusOK || !overridden {
		t.Errorf("override handler not invoked: code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/widgets/w1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("excluded operation should be 405, got %d", rec.Code)
	}
}

type UserResourceSuite struct {
	suite.Suite
	coll    *memstore.Collection
	users   *naiveauth.UserManager
	handler http.Handler
}

func TestUserResourceSuite(t *testing.T) {
	suite.Run(t, new(UserResourceSuite))
}

func (s *UserResourceSuite) SetupTest() {
	var err error
	s.coll = memstore.NewCollection("users")
	s.users, err = naiveauth.NewUserManager()
	s.Require().NoError(err)
	s.users.BindCollection(s.coll)

	api, err := restive.New(&restive.Options{
		UseDefaultAuth: true,
		Users:          s.users,
		Passwords:      s.users,
	})
	s.Require().NoError(err)
	s.Require().NoError(api.AddUserResource(s.coll, nil))

	s.handler, err = api.Handler()
	s.Require().NoError(err)
}

func (s *UserResourceSuite) do(method, path string, body restive.Record) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func (s *UserResourceSuite) decode(rec *httptest.ResponseRecorder) apiEnvelope {
	env := apiEnvelope{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))

	return env
}

func (s *UserResourceSuite) TestCreateProjectsProfile() {
	rec := s.do(http.MethodPost, "/api/users", restive.Record{
		"username": "alice",
		"password": "s3cret",
		"profile":  restive.Record{"displayName": "Alice"},
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	doc, ok := s.decode(rec).Data.(map[string]interface{})
	s.Require().True(ok)

	// reads return only the profile projection plus the id
	s.Contains(doc, "_id")
	s.Contains(doc, "profile")
	s.NotContains(doc, "username")
	s.NotContains(doc, "password")
}

func (s *UserResourceSuite) TestGetMissingUserIsNotFound() {
	rec := s.do(http.MethodGet, "/api/users/nobody", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("User not found", s.decode(rec).Message)
}

func (s *UserResourceSuite) TestReplaceUpdatesProfileOnly() {
	id, err := s.users.AddUser(naiveauth.User{Username: "bob", Password: "pw"})
	s.Require().NoError(err)
	_, err = s.coll.Insert(context.Background(), restive.Record{"_id": id, "username": "bob"})
	s.Require().NoError(err)

	rec := s.do(http.MethodPut, "/api/users/"+id, restive.Record{"displayName": "Bob"})
	s.Require().Equal(http.StatusOK, rec.Code)

	doc, err := s.coll.FindOne(context.Background(), restive.Selector{"_id": id})
	s.Require().NoError(err)
	s.Require().NotNil(doc)

	// the body lands under profile; the rest of the record survives
	s.Equal("bob", doc["username"])
	profile, ok := doc["profile"].(restive.Record)
	if !ok {
		// the store may hand back the raw map
		raw, rawOK := doc["profile"].(map[string]interface{})
		s.Require().True(rawOK)
		profile = restive.Record(raw)
	}
	s.Equal("Bob", profile["displayName"])
}

func (s *UserResourceSuite) TestPatchIsNotOffered() {
	rec := s.do(http.MethodPatch, "/api/users/u1", restive.Record{"x": 1})
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *UserResourceSuite) TestRemoveMissingUserIsNotFound() {
	rec := s.do(http.MethodDelete, "/api/users/nobody", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("User not found", s.decode(rec).Message)
}
