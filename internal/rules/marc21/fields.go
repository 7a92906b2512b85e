package marc21

import (
	"slices"

	"github.com/roach88/marcshift/internal/ir"
)

var nameTypes = []ir.IndicatorValue{
	{Code: "0", Label: "Forename"},
	{Code: "1", Label: "Surname"},
	{Code: "3", Label: "Family name"},
}

var personalNameSubfields = []ir.SubfieldSpec{
	{Code: "a", Name: "personal_name"},
	{Code: "b", Name: "numeration"},
	{Code: "c", Name: "titles_and_words_associated_with_a_name", Repeatable: true},
	{Code: "d", Name: "dates_associated_with_a_name"},
	{Code: "e", Name: "relator_term", Repeatable: true},
	{Code: "q", Name: "fuller_form_of_name"},
	{Code: "t", Name: "title_of_a_work"},
	{Code: "0", Name: "authority_record_control_number", Repeatable: true},
	{Code: "4", Name: "relator_code", Repeatable: true},
}

var linkSubfields = []ir.SubfieldSpec{
	{Code: "6", Name: "linkage"},
	{Code: "8", Name: "field_link_and_sequence_number", Repeatable: true},
}

func withLinks(sfs ...ir.SubfieldSpec) []ir.SubfieldSpec {
	return slices.Concat(sfs, linkSubfields)
}

// fieldSpecs are the built-in declarative rules, in registration order.
var fieldSpecs = []ir.FieldSpec{
	{Name: "control_number", Tag: "001", Control: true},
	{Name: "control_number_identifier", Tag: "003", Control: true},
	{Name: "date_and_time_of_latest_transaction", Tag: "005", Control: true},
	{
		Name:       "system_control_number",
		Tag:        "035",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "system_control_number"},
			ir.SubfieldSpec{Code: "z", Name: "canceled_invalid_control_number", Repeatable: true},
		),
	},
	{
		Name:      "main_entry_personal_name",
		Tag:       "100",
		Subfields: withLinks(personalNameSubfields...),
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "type_of_personal_name_entry_element", Values: nameTypes},
		},
	},
	{
		Name: "title_statement",
		Tag:  "245",
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "title"},
			ir.SubfieldSpec{Code: "b", Name: "remainder_of_title"},
			ir.SubfieldSpec{Code: "c", Name: "statement_of_responsibility"},
			ir.SubfieldSpec{Code: "f", Name: "inclusive_dates"},
			ir.SubfieldSpec{Code: "h", Name: "medium"},
			ir.SubfieldSpec{Code: "n", Name: "number_of_part_section_of_a_work", Repeatable: true},
			ir.SubfieldSpec{Code: "p", Name: "name_of_part_section_of_a_work", Repeatable: true},
		),
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "title_added_entry", Values: []ir.IndicatorValue{
				{Code: "0", Label: "No added entry"},
				{Code: "1", Label: "Added entry"},
			}},
			{Position: 2, Name: "nonfiling_characters"},
		},
	},
	{
		Name:       "edition_statement",
		Tag:        "250",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "edition_statement"},
			ir.SubfieldSpec{Code: "b", Name: "remainder_of_edition_statement"},
			ir.SubfieldSpec{Code: "3", Name: "materials_specified"},
		),
	},
	{
		Name:       "publication_distribution_imprint",
		Tag:        "260",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "place_of_publication_distribution", Repeatable: true},
			ir.SubfieldSpec{Code: "b", Name: "name_of_publisher_distributor", Repeatable: true},
			ir.SubfieldSpec{Code: "c", Name: "date_of_publication_distribution", Repeatable: true},
			ir.SubfieldSpec{Code: "3", Name: "materials_specified"},
		),
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "sequence_of_publishing_statements", Values: []ir.IndicatorValue{
				{Code: "_", Label: "Not applicable/No information provided/Earliest available publisher"},
				{Code: "2", Label: "Intervening publisher"},
				{Code: "3", Label: "Current/latest publisher"},
			}},
		},
	},
	{
		Name:       "physical_description",
		Tag:        "300",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "extent", Repeatable: true},
			ir.SubfieldSpec{Code: "b", Name: "other_physical_details"},
			ir.SubfieldSpec{Code: "c", Name: "dimensions", Repeatable: true},
			ir.SubfieldSpec{Code: "e", Name: "accompanying_material"},
			ir.SubfieldSpec{Code: "3", Name: "materials_specified"},
		),
	},
	{
		Name:       "general_note",
		Tag:        "500",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "general_note"},
			ir.SubfieldSpec{Code: "3", Name: "materials_specified"},
			ir.SubfieldSpec{Code: "5", Name: "institution_to_which_field_applies"},
		),
	},
	{
		Name:       "subject_added_entry_topical_term",
		Tag:        "650",
		Repeatable: true,
		Subfields: withLinks(
			ir.SubfieldSpec{Code: "a", Name: "topical_term_or_geographic_name_entry_element"},
			ir.SubfieldSpec{Code: "v", Name: "form_subdivision", Repeatable: true},
			ir.SubfieldSpec{Code: "x", Name: "general_subdivision", Repeatable: true},
			ir.SubfieldSpec{Code: "y", Name: "chronological_subdivision", Repeatable: true},
			ir.SubfieldSpec{Code: "z", Name: "geographic_subdivision", Repeatable: true},
			ir.SubfieldSpec{Code: "2", Name: "source_of_heading_or_term"},
			ir.SubfieldSpec{Code: "0", Name: "authority_record_control_number", Repeatable: true},
		),
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "level_of_subject", Values: []ir.IndicatorValue{
				{Code: "0", Label: "No level specified"},
				{Code: "1", Label: "Primary"},
				{Code: "2", Label: "Secondary"},
			}},
			{Position: 2, Name: "thesaurus", Values: []ir.IndicatorValue{
				{Code: "0", Label: "Library of Congress Subject Headings"},
				{Code: "1", Label: "LC subject headings for children's literature"},
				{Code: "2", Label: "Medical Subject Headings"},
				{Code: "3", Label: "National Agricultural Library subject authority file"},
				{Code: "4", Label: "Source not specified"},
				{Code: "5", Label: "Canadian Subject Headings"},
				{Code: "6", Label: "Répertoire de vedettes-matière"},
				{Code: "7", Label: "Source specified in subfield $2"},
			}},
		},
	},
	{
		Name:       "added_entry_personal_name",
		Tag:        "700",
		Repeatable: true,
		Subfields:  withLinks(personalNameSubfields...),
		Indicators: []ir.IndicatorSpec{
			{Position: 1, Name: "type_of_personal_name_entry_element", Values: nameTypes},
			{Position: 2, Name: "type_of_added_entry", Values: []ir.IndicatorValue{
				{Code: "2", Label: "Analytical entry"},
			}},
		},
	},
}
