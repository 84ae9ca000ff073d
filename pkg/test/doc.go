/*
Package test provides testing utilities for the openmq-client.

This package includes:
  - Suite: Base test suite with context and testify integration

Usage:

	import "github.com/chris-alexander-pop/openmq-client/pkg/test"

	type MyTestSuite struct {
		test.Suite
	}

	func (s *MyTestSuite) TestSomething() {
		s.NoError(doSomething(s.Ctx))
	}

	func TestMySuite(t *testing.T) {
		test.Run(t, new(MyTestSuite))
	}
*/
package test
