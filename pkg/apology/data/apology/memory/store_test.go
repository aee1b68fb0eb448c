package memory

import (
	"testing"

	"github.com/apologystake/stake-server/pkg/apology/data/apology/tests"
)

func TestApologyMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
