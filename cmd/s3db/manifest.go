package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/eventualconsistency"
	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/partition"
	"github.com/s3db-go/s3db/resource"
	"github.com/s3db-go/s3db/schema"
)

// manifest is the JSON-declared shape of a deployment's resources, the way
// an operator hands this thin CLI what application code would otherwise
// build in Go directly via resource.Config literals. No business logic
// lives here, only field-for-field decoding into the structs the db/
// resource packages already expose.
type manifest struct {
	Resources []resourceManifest `json:"resources"`
	// EC, when non-empty, declares the EventualConsistency plugin's target
	// resources and fields.
	EC map[string][]string `json:"eventualConsistency"`
}

type resourceManifest struct {
	Name            string                `json:"name"`
	Attributes      []schema.AttributeDef `json:"attributes"`
	Behavior        metadata.Behavior     `json:"behavior"`
	MetadataBudget  int                   `json:"metadataBudget"`
	Partitions      []partition.Def       `json:"partitions"`
	Timestamps      bool                  `json:"timestamps"`
	Paranoid        bool                  `json:"paranoid"`
	AsyncPartitions bool                  `json:"asyncPartitions"`
	// PartitionConcurrency is optional; omitted (nil) leaves the partition
	// engine's own default (10) in place rather than forcing 0.
	PartitionConcurrency *int `json:"partitionConcurrency,omitempty"`
}

func loadManifest(path string) (manifest, error) {
	var m manifest
	f, err := os.Open(path)
	if err != nil {
		return m, fmt.Errorf("read manifest %q: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return m, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	return m, nil
}

func (m resourceManifest) toConfig() resource.Config {
	return resource.Config{
		Name:                 m.Name,
		Attributes:           m.Attributes,
		Behavior:             m.Behavior,
		MetadataBudget:       m.MetadataBudget,
		Partitions:           m.Partitions,
		Timestamps:           m.Timestamps,
		Paranoid:             m.Paranoid,
		AsyncPartitions:      m.AsyncPartitions,
		PartitionConcurrency: common.PtrValue(m.PartitionConcurrency),
	}
}

func ecConfigFromManifest(m manifest) (eventualconsistency.Config, error) {
	return eventualconsistency.LoadConfig("S3DB", m.EC)
}
