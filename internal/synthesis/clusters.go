package synthesis

import (
	"sort"

	"merlt/domain/core"
	"merlt/domain/expert"
)

// cluster groups the opinions sharing one position, ordered by descending
// reliability weight so the highest-weight phrasing leads.
type cluster struct {
	position string
	opinions []expert.Opinion
	weights  map[core.ExpertID]float64
	mass     float64
}

// clusterByPosition partitions opinions into position clusters. Clusters are
// returned ordered by descending mass, ties broken by position label, so
// synthesis is deterministic for identical inputs and weights.
func clusterByPosition(opinions []expert.Opinion, weights map[core.ExpertID]float64) []*cluster {
	byPosition := make(map[string]*cluster)
	for _, op := range opinions {
		c, ok := byPosition[op.Position]
		if !ok {
			c = &cluster{position: op.Position, weights: weights}
			byPosition[op.Position] = c
		}
		c.opinions = append(c.opinions, op)
		c.mass += weights[op.ExpertID]
	}

	clusters := make([]*cluster, 0, len(byPosition))
	for _, c := range byPosition {
		sort.SliceStable(c.opinions, func(i, j int) bool {
			wi, wj := weights[c.opinions[i].ExpertID], weights[c.opinions[j].ExpertID]
			if wi != wj {
				return wi > wj
			}
			return c.opinions[i].ExpertID < c.opinions[j].ExpertID
		})
		clusters = append(clusters, c)
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].mass != clusters[j].mass {
			return clusters[i].mass > clusters[j].mass
		}
		return clusters[i].position < clusters[j].position
	})
	return clusters
}

// lead returns the highest-weight opinion of the cluster.
func (c *cluster) lead() expert.Opinion {
	return c.opinions[0]
}

// experts lists the cluster's contributors in weight order.
func (c *cluster) experts() []core.ExpertID {
	ids := make([]core.ExpertID, len(c.opinions))
	for i, op := range c.opinions {
		ids[i] = op.ExpertID
	}
	return ids
}

// novel reports whether any opinion in the cluster is structurally novel.
func (c *cluster) novel() bool {
	for _, op := range c.opinions {
		if op.Novel {
			return true
		}
	}
	return false
}

// weightedConfidence is the reliability-weighted mean confidence of the
// cluster's opinions.
func (c *cluster) weightedConfidence() float64 {
	sum, total := 0.0, 0.0
	for _, op := range c.opinions {
		w := c.weights[op.ExpertID]
		sum += w * op.Confidence
		total += w
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

// mergeCitations unions citation sets in opinion order, deduplicating by
// source and passage. Opinions arrive weight-ordered, so a citation's first
// appearance follows the higher-weight phrasing.
func mergeCitations(opinions []expert.Opinion) []expert.Citation {
	type key struct{ source, passage string }
	seen := make(map[key]bool)
	var merged []expert.Citation
	for _, op := range opinions {
		for _, cit := range op.Citations {
			k := key{cit.Source, cit.Passage}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, cit)
		}
	}
	return merged
}
