/*
	Package route generates the REST API for registered models. It has a
	small set of central types that are useful to understand when adding
	models or custom endpoints.

	Registry

	A Registry maps each registered model to the ViewSet serving it. Models
	are registered with Register, optionally on top of a base ViewSet and a
	map of Options, and the route table is assembled by GetURLs. Attach
	mounts the table on a gimlet application together with the API root,
	the OPTIONS responses and the documentation pages.

	ViewSet

	A ViewSet holds the query source, the serializer and the page size of one
	model and implements the six actions: List, Create, Retrieve, Update,
	PartialUpdate and Destroy. Every action checks the permission of the
	calling user before touching the store.

	Serializer

	Serializers (in rest/model) convert between stored records and API
	representations with BuildFromService and ToService. When a ViewSet has
	none, route assembly creates one exposing every field of the model.

	Route handlers

	Each action is wrapped in a gimlet RouteHandler that parses the request,
	runs the action with the user from the request context and maps errors to
	HTTP statuses.
*/
package route
