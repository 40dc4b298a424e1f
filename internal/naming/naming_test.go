package naming

import (
	"testing"

	"github.com/matryer/is"
)

func TestCasing(t *testing.T) {
	is := is.New(t)

	is.Equal(Pascal("create_request"), "CreateRequest")
	is.Equal(Pascal("User"), "User")
	is.Equal(Pascal("HTTPServer"), "HttpServer")
	is.Equal(Camel("created_at"), "createdAt")
	is.Equal(Snake("UserProfile"), "user_profile")
	is.Equal(Snake("HTTPServer"), "http_server")
	is.Equal(Snake("user2Fa"), "user2_fa")
	is.Equal(Kebab("BlogPost"), "blog-post")
	is.Equal(Camel(""), "")
}

func TestPlural(t *testing.T) {
	is := is.New(t)

	is.Equal(Plural("user"), "users")
	is.Equal(Plural("category"), "categories")
	is.Equal(Plural("day"), "days")
	is.Equal(Plural("address"), "addresses")
	is.Equal(Plural("box"), "boxes")
}
