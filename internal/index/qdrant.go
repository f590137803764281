package index

import (
	"context"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// QdrantIndex is a vector index backed by a Qdrant collection over gRPC.
// Point IDs are derived deterministically from unit identifiers so
// re-indexing the same corpus upserts instead of duplicating.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	embedder    Embedder
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string, embedder Embedder) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, eris.Wrapf(err, "index: dial qdrant %s", addr)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		embedder:    embedder,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return eris.Wrap(err, "index: list collections")
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.embedder.Dimension()),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "index: create collection %s", q.collection)
	}
	return nil
}

// Build upserts vectors for all units into the collection. Units are
// embedded sequentially; a failed embedding becomes a zero vector.
func (q *QdrantIndex) Build(ctx context.Context, units []model.KnowledgeUnit) error {
	if err := q.EnsureCollection(ctx); err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(units))
	for _, u := range units {
		id := u.ID()
		vec := embedOrZero(ctx, q.embedder, u.Content, id)

		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointUUID(id)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}},
			},
			Payload: map[string]*pb.Value{
				"unit_id": {Kind: &pb.Value_StringValue{StringValue: id}},
				"source":  {Kind: &pb.Value_StringValue{StringValue: u.Source}},
			},
		})
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return eris.Wrapf(err, "index: upsert %d points", len(points))
	}
	zap.L().Info("index: qdrant upsert done", zap.Int("points", len(points)), zap.String("collection", q.collection))
	return nil
}

// Search embeds the query and runs k-NN search against the collection.
// Qdrant's cosine similarity already sits in the fusion-compatible range.
func (q *QdrantIndex) Search(ctx context.Context, query string, k int) ([]model.RetrievedMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	qvec, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "index: embed query")
	}
	qvec = fitDimension(qvec, q.embedder.Dimension())

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         qvec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "index: qdrant search")
	}

	matches := make([]model.RetrievedMatch, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		id := r.GetPayload()["unit_id"].GetStringValue()
		if id == "" {
			id = r.GetId().GetUuid()
		}
		matches = append(matches, model.RetrievedMatch{
			ID:    id,
			Score: float64(r.GetScore()),
		})
	}
	return matches, nil
}

// pointUUID maps a unit identifier onto a stable UUID.
func pointUUID(unitID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(unitID)).String()
}
