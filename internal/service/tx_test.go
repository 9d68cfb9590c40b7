package service

import "context"

type testTxRepos struct {
	documents DocumentRepositoryInterface
	chunks    VectorIndex
	images    ImageRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface {
	return t.documents
}

func (t *testTxRepos) Chunks() VectorIndex {
	return t.chunks
}

func (t *testTxRepos) Images() ImageRepositoryInterface {
	return t.images
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
