package main

import (
	"github.com/spf13/cobra"

	"github.com/danceforge/backoffice/internal/models"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the resource catalog",
	}

	var (
		filter models.FilterState
		sort   string
		page   int
		limit  int
	)

	list := &cobra.Command{
		Use:   "list",
		Short: "List resources matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := models.SortKey(sort)
			if !key.IsValid() {
				return errInvalidSort(sort)
			}
			if limit == 0 {
				limit = a.cfg.Catalog.DefaultPageSize
			}

			view, err := a.catalog().View(cmd.Context(), models.CatalogQuery{
				Filter: filter,
				Sort:   key,
				Page:   page,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), view.Page)
			}
			printPage(cmd.OutOrStdout(), view.Page)
			return nil
		},
	}

	f := list.Flags()
	f.StringVar(&filter.Search, "search", "", "case-insensitive match on title or description")
	f.StringVar(&filter.DanceStyle, "style", "", "dance style")
	f.StringVar(&filter.AgeRange, "age", "", "age range")
	f.StringVar(&filter.DifficultyLevel, "difficulty", "", "difficulty level")
	f.StringVar(&filter.PriceRange, "price", "", "price bucket: free, under10, 10to20, over20")
	f.StringVar(&filter.Format, "format", "", "format: pdf, video, audio, image or a file type")
	f.StringVar(&filter.Seller, "seller", "", "seller id")
	f.StringVar(&sort, "sort", string(models.SortNewest), "newest, oldest, priceAsc, priceDesc or downloads")
	f.IntVar(&page, "page", 1, "page number")
	f.IntVar(&limit, "limit", 0, "page size, 0 uses the configured default")

	facets := &cobra.Command{
		Use:   "facets",
		Short: "Print facet counts over the whole catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.catalog().View(cmd.Context(), models.CatalogQuery{Sort: models.SortNewest, Page: 1, Limit: 1})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), view.Facets)
			}
			printFacets(cmd.OutOrStdout(), view.Facets)
			return nil
		},
	}

	cmd.AddCommand(list, facets)
	return cmd
}
