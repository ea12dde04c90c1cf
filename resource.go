package restive

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

const defaultIDField = "_id"

// ResourceOptions configures AddResource and AddUserResource.
type ResourceOptions struct {
	// Path defaults to the collection's own name.
	Path string

	// IDField is the identity key entity selectors match on. Defaults
	// to "_id".
	IDField string

	// Exclude drops standard operations from the generated set.
	Exclude []Operation

	// Overrides are caller-supplied per-operation settings, merged
	// over the generated actions; set fields win.
	Overrides map[Operation]*EndpointAction

	// RouteOptions apply to both generated routes and are the
	// defaults for every generated action.
	RouteOptions RouteOptions

	// ProfileFields is the restricted projection user-resource reads
	// return. Defaults to ["profile"]. Ignored by AddResource.
	ProfileFields []string
}

func (opts *ResourceOptions) setDefaults(coll Collection) {
	if opts.Path == "" {
		opts.Path = coll.Name()
	}
	if opts.IDField == "" {
		opts.IDField = defaultIDField
	}
	if opts.ProfileFields == nil {
		opts.ProfileFields = []string{"profile"}
	}
}

func (opts *ResourceOptions) excluded(op Operation) bool {
	for _, ex := range opts.Exclude {
		if ex == op {
			return true
		}
	}
	return false
}

func methodForOperation(op Operation) string {
	switch op {
	case OpList, OpGet:
		return http.MethodGet
	case OpCreate:
		return http.MethodPost
	case OpReplace:
		return http.MethodPut
	case OpPatch:
		return http.MethodPatch
	case OpRemove:
		return http.MethodDelete
	default:
		return ""
	}
}

func isCollectionLevel(op Operation) bool {
	return op == OpList || op == OpCreate
}

func mergeAction(generated, override *EndpointAction) {
	if override.Handler != nil {
		generated.Handler = override.Handler
	}
	if override.AuthRequired != nil {
		generated.AuthRequired = override.AuthRequired
	}
	if override.RequiredRoles != nil {
		generated.RequiredRoles = override.RequiredRoles
	}
	if override.Docs != nil {
		generated.Docs = override.Docs
	}
}

// AddResource generates the standard CRUD routes for a collection: a
// collection-level route at {path} (list, create) and an entity-level
// route at {path}/:id (get, replace, patch, remove). Excluded and
// overridden operations are honored per ResourceOptions.
func (a *API) AddResource(coll Collection, opts *ResourceOptions) error {
	if opts == nil {
		opts = &ResourceOptions{}
	}
	opts.setDefaults(coll)

	factories := map[Operation]func(Collection, string) *EndpointAction{
		OpList:    listEndpoint,
		OpGet:     getEndpoint,
		OpCreate:  createEndpoint,
		OpReplace: replaceEndpoint,
		OpPatch:   patchEndpoint,
		OpRemove:  removeEndpoint,
	}

	order := []Operation{OpList, OpGet, OpCreate, OpReplace, OpPatch, OpRemove}
	collectionEndpoints := Endpoints{}
	entityEndpoints := Endpoints{}

	for _, op := range order {
		if opts.excluded(op) {
			continue
		}

		action := factories[op](coll, opts.IDField)
		if override := opts.Overrides[op]; override != nil {
			mergeAction(action, override)
		}

		if isCollectionLevel(op) {
			collectionEndpoints[methodForOperation(op)] = action
		} else {
			entityEndpoints[methodForOperation(op)] = action
		}
	}

	return a.addResourceRoutes(opts, collectionEndpoints, entityEndpoints)
}

func (a *API) addResourceRoutes(opts *ResourceOptions, collectionEndpoints, entityEndpoints Endpoints) error {
	if len(collectionEndpoints) > 0 {
		if err := a.AddRoute(opts.Path, opts.RouteOptions, collectionEndpoints); err != nil {
			return errors.Wrapf(err, "registering collection route for '%s'", opts.Path)
		}
	}
	if len(entityEndpoints) > 0 {
		if err := a.AddRoute(opts.Path+"/:id", opts.RouteOptions, entityEndpoints); err != nil {
			return errors.Wrapf(err, "registering entity route for '%s'", opts.Path)
		}
	}

	return nil
}

// listEndpoint fetches every record matching the query parameters. An
// empty result is still a success with an empty set.
func listEndpoint(coll Collection, idField string) *EndpointAction {
	return &EndpointAction{
		op: OpList,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			docs, err := coll.Find(ctx, SelectorFromQuery(rc.QueryParams))
			if err != nil {
				return nil, errors.Wrapf(err, "finding records in '%s'", coll.Name())
			}

			return Success(docs), nil
		},
	}
}

func getEndpoint(coll Collection, idField string) *EndpointAction {
	return &EndpointAction{
		op: OpGet,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			doc, err := coll.FindOne(ctx, entitySelector(rc, idField))
			if err != nil {
				return nil, errors.Wrapf(err, "finding record in '%s'", coll.Name())
			}
			if doc == nil {
				return Fail(http.StatusNoContent, "Item not found"), nil
			}

			return Success(doc), nil
		},
	}
}

// createEndpoint inserts the body parameters as a new record and
// confirms the write by re-fetching the created record. The re-fetch
// is non-transactional: a concurrent delete between the insert and the
// read is reported as a failed creation.
func createEndpoint(coll Collection, idField string) *EndpointAction {
	return &EndpointAction{
		op: OpCreate,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			id, err := coll.Insert(ctx, rc.BodyParams)
			if err != nil {
				return nil, errors.Wrapf(err, "inserting record into '%s'", coll.Name())
			}

			doc, err := coll.FindOne(ctx, Selector{idField: id})
			if err != nil {
				return nil, errors.Wrapf(err, "fetching created record from '%s'", coll.Name())
			}
			if doc == nil {
				return Fail(http.StatusBadRequest, "No item added"), nil
			}

			return Created(doc), nil
		},
	}
}

func replaceEndpoint(coll Collection, idField string) *EndpointAction {
	return updateEndpoint(coll, idField, OpReplace, Collection.Update)
}

func patchEndpoint(coll Collection, idField string) *EndpointAction {
	return updateEndpoint(coll, idField, OpPatch, Collection.Merge)
}

// updateEndpoint implements the shared replace/patch algorithm: write
// through the entity selector, treat zero affected rows as a 400 fail,
// and re-fetch through the same selector on success.
func updateEndpoint(coll Collection, idField string, op Operation,
	write func(Collection, context.Context, Selector, Record) (int, error)) *EndpointAction {
	return &EndpointAction{
		op: op,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			sel := entitySelector(rc, idField)

			affected, err := write(coll, ctx, sel, rc.BodyParams)
			if err != nil {
				return nil, errors.Wrapf(err, "updating record in '%s'", coll.Name())
			}
			if affected == 0 {
				return Fail(http.StatusBadRequest, "Item not updated"), nil
			}

			doc, err := coll.FindOne(ctx, sel)
			if err != nil {
				return nil, errors.Wrapf(err, "fetching updated record from '%s'", coll.Name())
			}

			return Success(doc), nil
		},
	}
}

func removeEndpoint(coll Collection, idField string) *EndpointAction {
	return &EndpointAction{
		op: OpRemove,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			removed, err := coll.Remove(ctx, entitySelector(rc, idField))
			if err != nil {
				return nil, errors.Wrapf(err, "removing record from '%s'", coll.Name())
			}
			if removed == 0 {
				return Fail(http.StatusBadRequest, "Could not delete item"), nil
			}

			return Success(Record{"message": "Item removed"}), nil
		},
	}
}

// AddUserResource generates routes for the distinguished user
// collection. Reads project only the profile fields, creation goes
// through the user store's account creation, partial updates are not
// offered, and missing users report 404 rather than the 204/400 codes
// ordinary resources use.
func (a *API) AddUserResource(coll Collection, opts *ResourceOptions) error {
	if a.opts.Users == nil {
		return errors.New("user resource requires a user store")
	}
	if opts == nil {
		opts = &ResourceOptions{}
	}
	opts.setDefaults(coll)

	factories := map[Operation]func(Collection, *ResourceOptions) *EndpointAction{
		OpList:    userListEndpoint,
		OpGet:     userGetEndpoint,
		OpCreate:  a.userCreateEndpoint,
		OpReplace: userReplaceEndpoint,
		OpRemove:  userRemoveEndpoint,
	}

	order := []Operation{OpList, OpGet, OpCreate, OpReplace, OpRemove}
	collectionEndpoints := Endpoints{}
	entityEndpoints := Endpoints{}

	for _, op := range order {
		if opts.excluded(op) {
			continue
		}

		action := factories[op](coll, opts)
		if override := opts.Overrides[op]; override != nil {
			mergeAction(action, override)
		}

		if isCollectionLevel(op) {
			collectionEndpoints[methodForOperation(op)] = action
		} else {
			entityEndpoints[methodForOperation(op)] = action
		}
	}

	return a.addResourceRoutes(opts, collectionEndpoints, entityEndpoints)
}

func userListEndpoint(coll Collection, opts *ResourceOptions) *EndpointAction {
	return &EndpointAction{
		op: OpList,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			docs, err := coll.Find(ctx, Selector{}, opts.ProfileFields...)
			if err != nil {
				return nil, errors.Wrap(err, "finding users")
			}

			return Success(docs), nil
		},
	}
}

func userGetEndpoint(coll Collection, opts *ResourceOptions) *EndpointAction {
	return &EndpointAction{
		op: OpGet,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			doc, err := coll.FindOne(ctx, Selector{opts.IDField: rc.URLParams["id"]}, opts.ProfileFields...)
			if err != nil {
				return nil, errors.Wrap(err, "finding user")
			}
			if doc == nil {
				return Fail(http.StatusNotFound, "User not found"), nil
			}

			return Success(doc), nil
		},
	}
}

// userCreateEndpoint delegates account creation to the user store
// instead of inserting the body directly, then confirms through the
// collection like every other create.
func (a *API) userCreateEndpoint(coll Collection, opts *ResourceOptions) *EndpointAction {
	return &EndpointAction{
		op: OpCreate,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			id, err := a.opts.Users.CreateAccount(ctx, rc.BodyParams)
			if err != nil {
				return nil, errors.Wrap(err, "creating account")
			}

			doc, err := coll.FindOne(ctx, Selector{opts.IDField: id}, opts.ProfileFields...)
			if err != nil {
				return nil, errors.Wrap(err, "fetching created user")
			}
			if doc == nil {
				return Fail(http.StatusBadRequest, "No user added"), nil
			}

			return Created(doc), nil
		},
	}
}

// userReplaceEndpoint updates only the profile payload of the user
// document rather than replacing the whole record.
func userReplaceEndpoint(coll Collection, opts *ResourceOptions) *EndpointAction {
	return &EndpointAction{
		op: OpReplace,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			sel := Selector{opts.IDField: rc.URLParams["id"]}

			affected, err := coll.Merge(ctx, sel, Record{"profile": rc.BodyParams})
			if err != nil {
				return nil, errors.Wrap(err, "updating user profile")
			}
			if affected == 0 {
				return Fail(http.StatusNotFound, "User not found"), nil
			}

			doc, err := coll.FindOne(ctx, sel, opts.ProfileFields...)
			if err != nil {
				return nil, errors.Wrap(err, "fetching updated user")
			}

			return Success(doc), nil
		},
	}
}

func userRemoveEndpoint(coll Collection, opts *ResourceOptions) *EndpointAction {
	return &EndpointAction{
		op: OpRemove,
		Handler: func(ctx context.Context, rc *RequestContext) (*Response, error) {
			removed, err := coll.Remove(ctx, Selector{opts.IDField: rc.URLParams["id"]})
			if err != nil {
				return nil, errors.Wrap(err, "removing user")
			}
			if removed == 0 {
				return Fail(http.StatusNotFound, "User not found"), nil
			}

			return Success(Record{"message": "User removed"}), nil
		},
	}
}
