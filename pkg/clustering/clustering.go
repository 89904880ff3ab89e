/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package clustering resolves peer-to-peer membership for the
// clustering handshake named in spec.md §6 ("Clustering wire format
// (peripheral to the core but documented for completeness)"). The
// handshake transport itself lives in pkg/protocol; this package only
// answers "does any known node already own this server name".
package clustering

// Node is one peer discovered by the clustering handshake: its stable
// id and the set of server names it claims ownership of.
type Node struct {
	ID          string
	Host        string
	Port        int
	Active      bool
	ServerNames []string
}

// IsDefinedID reports whether id matches an already-known node.
func IsDefinedID(nodes []Node, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// IsDefinedServer reports whether server is already claimed by any
// node in nodes.
//
// original_source/src/libpgmoneta/clustering.c's is_defined_server
// bounds its inner loop on the *outer* index instead of the inner one:
//
//	for (int i = 0; i < config->number_of_nodes; i++)
//	{
//	   for (int j = 0; i < config->nodes[i].number_of_servers; j++)
//	   {
//	      if (!strcmp(config->nodes[i].server_names[j], server)) { return true; }
//	   }
//	}
//
// (spec.md §9 open question (a)). Depending on node/server-count
// values that comparison either loops forever (i never changes inside
// the inner loop, so `i < nodes[i].number_of_servers` never turns
// false once true) or skips the inner loop entirely (when it starts
// false), and in neither case does it correctly bound j against
// nodes[i].ServerNames's length. This rendering iterates every node's
// actual ServerNames slice, matching the clear intent stated in
// spec.md §9: "is this server name already owned by another node?".
func IsDefinedServer(nodes []Node, server string) bool {
	for _, n := range nodes {
		for _, s := range n.ServerNames {
			if s == server {
				return true
			}
		}
	}
	return false
}
