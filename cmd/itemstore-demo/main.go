// Command itemstore-demo exercises the shared item-state manager
// end-to-end: bootstrap a repository, add a node, and commit it,
// printing the manager's view after each step. It is a demonstration
// harness, not a deliverable in itself — the library is
// internal/manager and its collaborators.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/events"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/manager"
	"github.com/itemstate/core/internal/nodetype"
	"github.com/itemstate/core/internal/observation"
	"github.com/itemstate/core/internal/persistence/memstore"
	"github.com/itemstate/core/internal/persistence/sqlitepersist"
	"github.com/itemstate/core/internal/values"
)

var rootUUID = uuid.MustParse("cafebabe-0000-0000-0000-000000000001")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "itemstore-demo",
		Short: "Exercise the shared item-state manager's commit protocol",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file to persist into (empty = in-memory store)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	viper.BindPFlag("db", root.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newBootstrapCmd(), newAddNodeCmd(), newCommitDemoCmd())
	return root
}

func buildManager(ctx context.Context) (*manager.Manager, func(), error) {
	logger := zap.NewNop()
	if viper.GetBool("verbose") {
		logger, _ = zap.NewDevelopment()
	}

	registry := nodetype.NewMemRegistry("rep:root")
	cfg := manager.Config{
		RootUUID:      rootUUID,
		RootTypeName:  "rep:root",
		CacheCapacity: 1024,
		Logger:        logger,
	}

	dbPath := viper.GetString("db")
	if dbPath == "" {
		store := memstore.New()
		m, err := manager.New(ctx, store, registry, cfg, nil)
		return m, func() {}, err
	}

	store, err := sqlitepersist.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("itemstore-demo: open %s: %w", dbPath, err)
	}
	m, err := manager.New(ctx, store, registry, cfg, nil)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return m, func() { store.Close() }, nil
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the repository root and print its item state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := buildManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := m.GetItemState(ctx, itemid.NodeID(rootUUID))
			if err != nil {
				return err
			}
			node, _ := s.Node()
			fmt.Printf("root %s type=%s status=%s properties=%v\n", node.UUID, node.NodeTypeName, s.Status(), node.PropertyNames)
			return nil
		},
	}
}

func newAddNodeCmd() *cobra.Command {
	var name string
	var typeName string

	cmd := &cobra.Command{
		Use:   "add-node",
		Short: "Add one child node of the repository root and commit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := buildManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			childUUID := uuid.New()
			log := changelog.New()

			qname := itemid.NewQName("", name)
			childID := itemid.NodeID(childUUID)
			childData := &itemstate.NodeData{
				UUID:         childUUID,
				HasParent:    true,
				ParentUUID:   rootUUID,
				NodeTypeName: typeName,
			}
			log.Added(itemstate.NewNodeState(childID, itemstate.StatusNew, childData, ""))

			propID := itemid.PropertyID(childUUID, itemid.NewQName(nodetype.JCRNamespace, "primaryType"))
			propData := &itemstate.PropertyData{
				Name:       itemid.NewQName(nodetype.JCRNamespace, "primaryType"),
				ParentUUID: childUUID,
				Type:       values.TypeName,
				Values:     []values.Value{values.NewName(itemid.NewQName("", typeName))},
			}
			log.Added(itemstate.NewPropertyState(propID, itemstate.StatusNew, propData, ""))

			root, err := m.GetItemState(ctx, itemid.NodeID(rootUUID))
			if err != nil {
				return err
			}
			rootNode, _ := root.Node()
			rootCopy := *rootNode
			entry := rootCopy.AddChild(qname, childUUID)
			rootTransient := itemstate.NewNodeState(itemid.NodeID(rootUUID), itemstate.StatusExisting, &rootCopy, root.DefinitionID())
			log.Modified(rootTransient)

			obs := observation.NewDefaultManager(func(evs []events.Event) error {
				for _, ev := range evs {
					fmt.Printf("event %s %s\n", ev.Type, ev.ItemID)
				}
				return nil
			})

			if err := m.Store(ctx, log, obs); err != nil {
				return err
			}
			fmt.Printf("added %s as %s child index %d\n", childUUID, qname, entry.Index)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "child", "local name of the new child")
	cmd.Flags().StringVar(&typeName, "type", "nt:unstructured", "node type name of the new child")
	return cmd
}

func newCommitDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit-demo",
		Short: "Bootstrap the repository and check that its root resolves",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := buildManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if _, err := m.GetItemState(ctx, itemid.NodeID(rootUUID)); err != nil {
				return err
			}
			fmt.Println("bootstrap ok; run add-node next against the same --db to see the commit protocol run")
			return nil
		},
	}
}
